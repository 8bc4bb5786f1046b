package assets

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
)

// Ledger registra assets subidos aún sin asociar. Los engines consumen
// entradas (Remove) dentro de la misma transacción que crea la asociación.
type Ledger interface {
	Put(ctx context.Context, a StagedAsset) error
	Get(ctx context.Context, id string) (StagedAsset, error)
	Remove(ctx context.Context, id string) error
	ListOlderThan(ctx context.Context, cutoff time.Time) ([]StagedAsset, error)
}
