package storage

import (
	"context"
	"errors"
	"io"
)

// Kind separa los espacios de objetos en el backend.
type Kind string

const (
	KindDog      Kind = "dog"
	KindProfile  Kind = "profile"
	KindDocument Kind = "document"
)

func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindDog, KindProfile, KindDocument:
		return Kind(s), nil
	}
	return "", ErrInvalidUpload
}

// ObjectInfo son los metadatos mínimos del read path (GET/HEAD por id).
type ObjectInfo struct {
	ContentType string
	Size        int64
}

// Store define el contrato con el almacenamiento externo de binarios.
// Los ids los genera el engine, nunca el backend; un id jamás se reutiliza.
type Store interface {
	Upload(ctx context.Context, kind Kind, id string, r io.Reader, contentType string) error
	Open(ctx context.Context, kind Kind, id string) (io.ReadCloser, ObjectInfo, error)
	Stat(ctx context.Context, kind Kind, id string) (ObjectInfo, error)

	// Delete es best-effort e idempotente: borrar un objeto inexistente
	// devuelve nil.
	Delete(ctx context.Context, kind Kind, id string) error

	PublicURL(kind Kind, id string) string

	// CloudBacked indica si el read path se sirve por redirect (CDN)
	// en lugar de bytes directos.
	CloudBacked() bool
}

var (
	ErrInvalidUpload  = errors.New("invalid upload")
	ErrObjectNotFound = errors.New("object not found")
)

// MaxUploadSize es el límite por archivo.
const MaxUploadSize = 15 * 1024 * 1024

var imageContentTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/webp": {},
	"image/gif":  {},
}

var documentContentTypes = map[string]struct{}{
	"application/pdf": {},
	"image/jpeg":      {},
	"image/png":       {},
}

// ValidateUpload aplica la política de subida por kind: bytes no vacíos,
// tamaño acotado y content-type dentro de la lista permitida.
func ValidateUpload(kind Kind, contentType string, size int64) error {
	if size <= 0 || size > MaxUploadSize {
		return ErrInvalidUpload
	}
	allowed := imageContentTypes
	if kind == KindDocument {
		allowed = documentContentTypes
	}
	if _, ok := allowed[contentType]; !ok {
		return ErrInvalidUpload
	}
	return nil
}
