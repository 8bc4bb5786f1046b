package requests

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

// Repository persiste requests con sus documentos. Las implementaciones
// devuelven ErrNotFound / ErrConflict de este paquete.
type Repository interface {
	Create(ctx context.Context, r AdoptionRequest) error

	// GetByID carga el request con sus documentos.
	GetByID(ctx context.Context, id string) (AdoptionRequest, error)

	// Update escribe los campos del request (no toca documentos) guardado
	// por Version: si la versión no coincide devuelve ErrConflict.
	Update(ctx context.Context, r AdoptionRequest) error

	Delete(ctx context.Context, id string) error

	// ListByListing incluye documentos: la cascada de rechazo necesita
	// leer los hermanos dentro de la misma transacción que la aceptación.
	ListByListing(ctx context.Context, listingID string) ([]AdoptionRequest, error)

	ListByRequester(ctx context.Context, requesterUserID string) ([]AdoptionRequest, error)

	AddDocument(ctx context.Context, requestID string, d Document) error
}
