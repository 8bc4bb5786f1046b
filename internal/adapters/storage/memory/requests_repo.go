package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"dog-adoption-service/internal/domain/requests"
)

type requestRepo struct {
	mu   sync.RWMutex
	byID map[string]requests.AdoptionRequest
}

func NewRequestRepo() requests.Repository {
	return &requestRepo{
		byID: make(map[string]requests.AdoptionRequest),
	}
}

func (r *requestRepo) Create(ctx context.Context, req requests.AdoptionRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if strings.TrimSpace(req.ID) == "" {
		return requests.ErrInvalidInput
	}
	if _, exists := r.byID[req.ID]; exists {
		return requests.ErrConflict
	}
	req.Documents = cloneDocuments(req.Documents)
	r.byID[req.ID] = req
	return nil
}

func (r *requestRepo) GetByID(ctx context.Context, id string) (requests.AdoptionRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	req, ok := r.byID[id]
	if !ok {
		return requests.AdoptionRequest{}, requests.ErrNotFound
	}
	req.Documents = cloneDocuments(req.Documents)
	return req, nil
}

// Update escribe los campos del request con guard por versión. No toca
// documentos.
func (r *requestRepo) Update(ctx context.Context, req requests.AdoptionRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.byID[req.ID]
	if !ok {
		return requests.ErrNotFound
	}
	if cur.Version != req.Version {
		return requests.ErrConflict
	}

	req.Version = cur.Version + 1
	req.Documents = cur.Documents
	r.byID[req.ID] = req
	return nil
}

func (r *requestRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[id]; !ok {
		return requests.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

func (r *requestRepo) ListByListing(ctx context.Context, listingID string) ([]requests.AdoptionRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]requests.AdoptionRequest, 0)
	for _, req := range r.byID {
		if req.ListingID == listingID {
			req.Documents = cloneDocuments(req.Documents)
			out = append(out, req)
		}
	}
	sortBySubmittedAt(out)
	return out, nil
}

func (r *requestRepo) ListByRequester(ctx context.Context, requesterUserID string) ([]requests.AdoptionRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]requests.AdoptionRequest, 0)
	for _, req := range r.byID {
		if req.RequesterUserID == requesterUserID {
			req.Documents = cloneDocuments(req.Documents)
			out = append(out, req)
		}
	}
	sortBySubmittedAt(out)
	return out, nil
}

func (r *requestRepo) AddDocument(ctx context.Context, requestID string, doc requests.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	req, ok := r.byID[requestID]
	if !ok {
		return requests.ErrNotFound
	}
	for _, existing := range req.Documents {
		if existing.ID == doc.ID {
			return requests.ErrConflict
		}
	}
	req.Documents = append(cloneDocuments(req.Documents), doc)
	r.byID[requestID] = req
	return nil
}

func cloneDocuments(in []requests.Document) []requests.Document {
	if in == nil {
		return nil
	}
	out := make([]requests.Document, len(in))
	copy(out, in)
	return out
}

func sortBySubmittedAt(items []requests.AdoptionRequest) {
	sort.Slice(items, func(i, j int) bool {
		return items[i].SubmittedAt.Before(items[j].SubmittedAt)
	})
}
