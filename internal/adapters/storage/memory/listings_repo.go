package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"dog-adoption-service/internal/domain/listings"
)

// listingRepo guarda todo en memoria. Imita la semántica del adapter de
// postgres, incluido el guard optimista por versión, para que los tests y el
// modo dev ejerciten los mismos caminos.
type listingRepo struct {
	mu   sync.RWMutex
	byID map[string]listings.Listing
}

func NewListingRepo() listings.Repository {
	return &listingRepo{
		byID: make(map[string]listings.Listing),
	}
}

func (r *listingRepo) Create(ctx context.Context, l listings.Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if strings.TrimSpace(l.ID) == "" {
		return listings.ErrInvalidInput
	}
	if _, exists := r.byID[l.ID]; exists {
		return listings.ErrConflict
	}
	l.Images = cloneImages(l.Images)
	r.byID[l.ID] = l
	return nil
}

func (r *listingRepo) GetByID(ctx context.Context, id string) (listings.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	l, ok := r.byID[id]
	if !ok {
		return listings.Listing{}, listings.ErrNotFound
	}
	l.Images = cloneImages(l.Images)
	return l, nil
}

// Update escribe los campos del listing si la versión coincide, igual que el
// UPDATE ... WHERE version = $n de postgres. No toca imágenes.
func (r *listingRepo) Update(ctx context.Context, l listings.Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.byID[l.ID]
	if !ok {
		return listings.ErrNotFound
	}
	if cur.Version != l.Version {
		return listings.ErrConflict
	}

	l.Version = cur.Version + 1
	l.Images = cur.Images
	r.byID[l.ID] = l
	return nil
}

func (r *listingRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[id]; !ok {
		return listings.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

func (r *listingRepo) ListByOwner(ctx context.Context, ownerUserID string) ([]listings.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]listings.Listing, 0)
	for _, l := range r.byID {
		if l.OwnerUserID == ownerUserID {
			l.Images = cloneImages(l.Images)
			out = append(out, l)
		}
	}
	sortByCreatedAt(out)
	return out, nil
}

func (r *listingRepo) ListPublic(ctx context.Context) ([]listings.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]listings.Listing, 0)
	for _, l := range r.byID {
		if l.RevisionState == listings.RevisionApproved && l.AdoptionState == listings.AdoptionAvailable {
			l.Images = cloneImages(l.Images)
			out = append(out, l)
		}
	}
	sortByCreatedAt(out)
	return out, nil
}

func (r *listingRepo) AddImage(ctx context.Context, listingID string, img listings.Image) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.byID[listingID]
	if !ok {
		return listings.ErrNotFound
	}
	for _, existing := range l.Images {
		if existing.ID == img.ID {
			return listings.ErrConflict
		}
	}
	l.Images = append(cloneImages(l.Images), img)
	r.byID[listingID] = l
	return nil
}

func (r *listingRepo) RemoveImages(ctx context.Context, listingID string, imageIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.byID[listingID]
	if !ok {
		return listings.ErrNotFound
	}

	drop := make(map[string]struct{}, len(imageIDs))
	for _, id := range imageIDs {
		drop[id] = struct{}{}
	}
	kept := make([]listings.Image, 0, len(l.Images))
	for _, img := range l.Images {
		if _, gone := drop[img.ID]; !gone {
			kept = append(kept, img)
		}
	}
	l.Images = kept
	r.byID[listingID] = l
	return nil
}

func (r *listingRepo) ClearPrincipal(ctx context.Context, listingID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.byID[listingID]
	if !ok {
		return listings.ErrNotFound
	}
	imgs := cloneImages(l.Images)
	for i := range imgs {
		imgs[i].Principal = false
	}
	l.Images = imgs
	r.byID[listingID] = l
	return nil
}

func (r *listingRepo) SetPrincipal(ctx context.Context, listingID, imageID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.byID[listingID]
	if !ok {
		return listings.ErrNotFound
	}
	imgs := cloneImages(l.Images)
	for i := range imgs {
		if imgs[i].ID == imageID {
			imgs[i].Principal = true
			l.Images = imgs
			r.byID[listingID] = l
			return nil
		}
	}
	return listings.ErrNotFound
}

func cloneImages(in []listings.Image) []listings.Image {
	if in == nil {
		return nil
	}
	out := make([]listings.Image, len(in))
	copy(out, in)
	return out
}

// Orden estable por created_at asc (solo para consistencia en dev)
func sortByCreatedAt(items []listings.Listing) {
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
}
