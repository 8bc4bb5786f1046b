package assets

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/google/uuid"

	"dog-adoption-service/internal/platform/logger"
	"dog-adoption-service/internal/ports/storage"
)

// Service maneja el staging de uploads, el read path por id y el barrido
// de huérfanos.
type Service struct {
	ledger Ledger
	store  storage.Store
	log    logger.Logger

	// Edad mínima para considerar huérfano a un asset staged.
	ttl time.Duration

	now func() time.Time
}

func NewService(ledger Ledger, store storage.Store, log logger.Logger, ttl time.Duration) *Service {
	return &Service{
		ledger: ledger,
		store:  store,
		log:    log,
		ttl:    ttl,
		now:    time.Now,
	}
}

type UploadInput struct {
	Kind        storage.Kind
	Filename    string
	ContentType string
	Data        []byte
}

// Upload valida la política de subida, genera el id (el engine genera ids,
// nunca el backend), sube el binario y registra la entrada en el ledger.
// Si el registro falla, el asset recién subido se borra sincrónicamente.
func (s *Service) Upload(ctx context.Context, in UploadInput) (StagedAsset, error) {
	if _, err := storage.ParseKind(string(in.Kind)); err != nil {
		return StagedAsset{}, ErrInvalidInput
	}
	if err := storage.ValidateUpload(in.Kind, in.ContentType, int64(len(in.Data))); err != nil {
		return StagedAsset{}, ErrInvalidInput
	}

	a := StagedAsset{
		ID:          uuid.NewString(),
		Kind:        in.Kind,
		Filename:    in.Filename,
		ContentType: in.ContentType,
		Size:        int64(len(in.Data)),
		UploadedAt:  s.now(),
	}

	if err := s.store.Upload(ctx, a.Kind, a.ID, bytes.NewReader(in.Data), a.ContentType); err != nil {
		return StagedAsset{}, err
	}

	if err := s.ledger.Put(ctx, a); err != nil {
		// Compensación síncrona: no dejar el binario sin rastro en el ledger.
		if delErr := s.store.Delete(ctx, a.Kind, a.ID); delErr != nil {
			s.log.Warn("compensating delete failed", map[string]any{
				"asset_id": a.ID, "error": delErr.Error(),
			})
		}
		return StagedAsset{}, err
	}

	return a, nil
}

// Open sirve los bytes del asset (read path local).
func (s *Service) Open(ctx context.Context, kind storage.Kind, id string) (io.ReadCloser, storage.ObjectInfo, error) {
	return s.store.Open(ctx, kind, id)
}

// Stat devuelve los metadatos sin cuerpo (HEAD).
func (s *Service) Stat(ctx context.Context, kind storage.Kind, id string) (storage.ObjectInfo, error) {
	return s.store.Stat(ctx, kind, id)
}

// RedirectURL devuelve la URL pública cuando el backend es un CDN.
func (s *Service) RedirectURL(kind storage.Kind, id string) (string, bool) {
	if !s.store.CloudBacked() {
		return "", false
	}
	return s.store.PublicURL(kind, id), true
}

// SweepOnce borra del storage y del ledger los assets staged más viejos
// que el TTL. Las fallas de storage son best-effort: la entrada se conserva
// para el próximo barrido.
func (s *Service) SweepOnce(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.ttl)
	stale, err := s.ledger.ListOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, a := range stale {
		if err := s.store.Delete(ctx, a.Kind, a.ID); err != nil {
			s.log.Warn("orphan delete failed, keeping ledger entry", map[string]any{
				"asset_id": a.ID, "error": err.Error(),
			})
			continue
		}
		if err := s.ledger.Remove(ctx, a.ID); err != nil {
			s.log.Warn("ledger remove failed", map[string]any{
				"asset_id": a.ID, "error": err.Error(),
			})
			continue
		}
		removed++
	}
	return removed, nil
}

// Run ejecuta el barrido periódico hasta que el contexto se cancele.
func (s *Service) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.SweepOnce(ctx)
			if err != nil {
				s.log.Error("orphan sweep failed", map[string]any{"error": err.Error()})
				continue
			}
			if n > 0 {
				s.log.Info("orphan sweep", map[string]any{"removed": n})
			}
		}
	}
}
