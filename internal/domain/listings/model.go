package listings

import (
	"fmt"
	"time"
)

// RevisionState es el estado de moderación del listing.
type RevisionState string

const (
	RevisionPending  RevisionState = "pending"
	RevisionApproved RevisionState = "approved"
	RevisionRejected RevisionState = "rejected"
)

// AdoptionState es el estado de disponibilidad del listing.
type AdoptionState string

const (
	AdoptionPending     AdoptionState = "pending"
	AdoptionAvailable   AdoptionState = "available"
	AdoptionAdopted     AdoptionState = "adopted"
	AdoptionUnavailable AdoptionState = "unavailable"
)

// Los estados se persisten como labels legibles. Un label desconocido al
// leer es corrupción de datos, no un default silencioso.
func ParseRevisionState(s string) (RevisionState, error) {
	switch RevisionState(s) {
	case RevisionPending, RevisionApproved, RevisionRejected:
		return RevisionState(s), nil
	}
	return "", fmt.Errorf("%w: revision state %q", ErrCorruptState, s)
}

func ParseAdoptionState(s string) (AdoptionState, error) {
	switch AdoptionState(s) {
	case AdoptionPending, AdoptionAvailable, AdoptionAdopted, AdoptionUnavailable:
		return AdoptionState(s), nil
	}
	return "", fmt.Errorf("%w: adoption state %q", ErrCorruptState, s)
}

// Sex define el sexo del perro.
type Sex string

const (
	SexMale    Sex = "male"
	SexFemale  Sex = "female"
	SexUnknown Sex = "unknown"
)

// Size define el porte del perro.
type Size string

const (
	SizeSmall  Size = "small"
	SizeMedium Size = "medium"
	SizeLarge  Size = "large"
)

// MaxImages es el tope de imágenes por listing.
const MaxImages = 5

// Image es un asset de almacenamiento externo asociado al listing.
// El ID es el id del asset; no existe id propio de la fila.
type Image struct {
	ID         string
	Caption    string
	Principal  bool
	UploadedAt time.Time
}

// Listing representa un perro publicado para adopción.
type Listing struct {
	ID          string
	OwnerUserID string

	Name        string
	Age         int
	Sex         Sex
	Size        Size
	Breed       string
	Description string
	Location    string

	RevisionState RevisionState
	AdoptionState AdoptionState

	// Solo se estampan en transiciones de revisión o cambios privilegiados.
	ReviewerUserID string
	ReviewedAt     *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time

	// Contador optimista: detecta lost updates entre lecturas concurrentes.
	Version int64

	Images []Image
}

// PrincipalImage devuelve la imagen principal si existe exactamente una.
func (l Listing) PrincipalImage() (Image, bool) {
	var found Image
	count := 0
	for _, img := range l.Images {
		if img.Principal {
			found = img
			count++
		}
	}
	if count != 1 {
		return Image{}, false
	}
	return found, true
}

// Editable: un listing adoptado o no disponible no se edita ni se borra.
func (l Listing) Editable() bool {
	return l.AdoptionState != AdoptionAdopted && l.AdoptionState != AdoptionUnavailable
}

func (l Listing) HasImage(id string) bool {
	for _, img := range l.Images {
		if img.ID == id {
			return true
		}
	}
	return false
}
