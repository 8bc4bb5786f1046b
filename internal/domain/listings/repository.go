package listings

import (
	"context"
	"errors"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrBadState     = errors.New("invalid state")
	ErrConflict     = errors.New("conflict")
	ErrCorruptState = errors.New("corrupt state label")
)

// Repository persiste listings con sus imágenes. Las implementaciones
// devuelven ErrNotFound / ErrConflict de este paquete.
type Repository interface {
	// Create inserta el listing junto con sus imágenes iniciales.
	Create(ctx context.Context, l Listing) error

	// GetByID carga el listing con sus imágenes.
	GetByID(ctx context.Context, id string) (Listing, error)

	// Update escribe los campos del listing (no toca imágenes) guardado
	// por Version: si la versión no coincide devuelve ErrConflict.
	Update(ctx context.Context, l Listing) error

	Delete(ctx context.Context, id string) error

	ListByOwner(ctx context.Context, ownerUserID string) ([]Listing, error)

	// ListPublic devuelve solo listings approved + available.
	ListPublic(ctx context.Context) ([]Listing, error)

	AddImage(ctx context.Context, listingID string, img Image) error
	RemoveImages(ctx context.Context, listingID string, imageIDs []string) error

	// ClearPrincipal + SetPrincipal: la reasignación se aplica como
	// limpiar-todo-y-marcar-una para no violar la unicidad ni un instante.
	ClearPrincipal(ctx context.Context, listingID string) error
	SetPrincipal(ctx context.Context, listingID, imageID string) error
}
