package requests

import (
	"fmt"
	"time"
)

// Status es el estado del request de adopción.
type Status string

const (
	StatusPending   Status = "pending"
	StatusInReview  Status = "in_review"
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
)

// ParseStatus rechaza labels desconocidos al leer del store: eso es
// corrupción de datos, no un default.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusInReview, StatusAccepted, StatusRejected, StatusCancelled:
		return Status(s), nil
	}
	return "", fmt.Errorf("%w: request status %q", ErrCorruptState, s)
}

// CanTransition codifica las aristas válidas de la máquina de estados.
// accepted -> rejected existe pero solo el revert explícito la recorre.
func (s Status) CanTransition(to Status) bool {
	switch s {
	case StatusPending:
		return to == StatusInReview || to == StatusAccepted || to == StatusRejected || to == StatusCancelled
	case StatusInReview:
		return to == StatusAccepted || to == StatusRejected || to == StatusCancelled
	case StatusAccepted:
		return to == StatusRejected
	}
	return false
}

// Terminal: accepted y rejected solo salen vía revert; cancelled no sale nunca.
func (s Status) Terminal() bool {
	return s == StatusAccepted || s == StatusRejected || s == StatusCancelled
}

// MinDocumentTypes es el gate documental para in_review y accepted.
const MinDocumentTypes = 2

// Document es un archivo subido para respaldar el request.
// El ID es el id del asset en el almacenamiento externo.
type Document struct {
	ID          string
	Type        string
	Filename    string
	ContentType string
	Size        int64
	UploadedAt  time.Time
}

// AdoptionRequest es la solicitud de un adoptante sobre un listing.
type AdoptionRequest struct {
	ID              string
	ListingID       string
	RequesterUserID string

	Status  Status
	Message string

	SubmittedAt    time.Time
	RespondedAt    *time.Time
	ReviewerUserID string

	Version int64

	Documents []Document
}

// DistinctDocumentTypes cuenta tags de tipo distintos entre los documentos.
func (r AdoptionRequest) DistinctDocumentTypes() int {
	seen := map[string]struct{}{}
	for _, d := range r.Documents {
		seen[d.Type] = struct{}{}
	}
	return len(seen)
}
