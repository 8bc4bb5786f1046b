package assets

import (
	"time"

	"dog-adoption-service/internal/ports/storage"
)

// StagedAsset es un asset subido que todavía no pertenece a ningún
// listing ni request. El ledger vive aparte de esas tablas: acota el daño
// de un cliente que sube y nunca completa el create.
type StagedAsset struct {
	ID          string
	Kind        storage.Kind
	Filename    string
	ContentType string
	Size        int64
	UploadedAt  time.Time
}
