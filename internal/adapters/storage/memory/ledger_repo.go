package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"dog-adoption-service/internal/domain/assets"
)

type ledgerRepo struct {
	mu   sync.RWMutex
	byID map[string]assets.StagedAsset
}

func NewLedgerRepo() assets.Ledger {
	return &ledgerRepo{
		byID: make(map[string]assets.StagedAsset),
	}
}

func (r *ledgerRepo) Put(ctx context.Context, a assets.StagedAsset) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if strings.TrimSpace(a.ID) == "" {
		return assets.ErrInvalidInput
	}
	r.byID[a.ID] = a
	return nil
}

func (r *ledgerRepo) Get(ctx context.Context, id string) (assets.StagedAsset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.byID[id]
	if !ok {
		return assets.StagedAsset{}, assets.ErrNotFound
	}
	return a, nil
}

// Remove es idempotente: consumir una entrada ya consumida no falla.
func (r *ledgerRepo) Remove(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.byID, id)
	return nil
}

func (r *ledgerRepo) ListOlderThan(ctx context.Context, cutoff time.Time) ([]assets.StagedAsset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]assets.StagedAsset, 0)
	for _, a := range r.byID {
		if a.UploadedAt.Before(cutoff) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UploadedAt.Before(out[j].UploadedAt)
	})
	return out, nil
}
