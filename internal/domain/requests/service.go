package requests

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"dog-adoption-service/internal/domain/actor"
	"dog-adoption-service/internal/domain/listings"
	"dog-adoption-service/internal/platform/logger"
	"dog-adoption-service/internal/platform/txn"
	"dog-adoption-service/internal/ports/storage"
)

// Service es el engine de requests de adopción. La aceptación es un script
// transaccional multi-agregado: muta el listing y rechaza en cascada a los
// hermanos, todo bajo la misma transacción.
type Service struct {
	repo     Repository
	listings listings.Repository
	store    storage.Store
	tx       txn.Runner
	log      logger.Logger
	now      func() time.Time
}

func NewService(repo Repository, lst listings.Repository, store storage.Store, tx txn.Runner, log logger.Logger) *Service {
	return &Service{
		repo:     repo,
		listings: lst,
		store:    store,
		tx:       tx,
		log:      log,
		now:      time.Now,
	}
}

type DocumentInput struct {
	Type        string
	Filename    string
	ContentType string
	Data        []byte
}

type CreateInput struct {
	ListingID string
	Message   string
	Document  DocumentInput
}

// Create valida las precondiciones (no auto-request, listing aprobado y
// disponible), persiste primero la fila del request, después sube el
// documento y recién entonces persiste la fila del documento. Si esa última
// escritura falla, el asset recién subido se borra sincrónicamente; si la
// transacción completa aborta, el hook de rollback lo borra igual.
func (s *Service) Create(ctx context.Context, act actor.Actor, in CreateInput) (AdoptionRequest, error) {
	if !act.Valid() {
		return AdoptionRequest{}, ErrInvalidInput
	}
	listingID := strings.TrimSpace(in.ListingID)
	if listingID == "" {
		return AdoptionRequest{}, ErrInvalidInput
	}
	if err := validateDocumentInput(in.Document); err != nil {
		return AdoptionRequest{}, err
	}

	var out AdoptionRequest
	err := s.tx.InTx(ctx, func(ctx context.Context, h *txn.Hooks) error {
		lst, err := s.listings.GetByID(ctx, listingID)
		if err != nil {
			return mapListingErr(err)
		}
		if lst.OwnerUserID == act.UserID {
			return fmt.Errorf("%w: cannot request own listing", ErrBadState)
		}
		if lst.RevisionState != listings.RevisionApproved || lst.AdoptionState != listings.AdoptionAvailable {
			return fmt.Errorf("%w: listing not available", ErrBadState)
		}

		now := s.now()
		req := AdoptionRequest{
			ID:              uuid.NewString(),
			ListingID:       listingID,
			RequesterUserID: act.UserID,
			Status:          StatusPending,
			Message:         strings.TrimSpace(in.Message),
			SubmittedAt:     now,
			Version:         1,
		}
		if err := s.repo.Create(ctx, req); err != nil {
			return err
		}

		doc, err := s.uploadDocument(ctx, h, req.ID, in.Document, now)
		if err != nil {
			return err
		}

		req.Documents = []Document{doc}
		out = req
		return nil
	})
	if err != nil {
		return AdoptionRequest{}, err
	}
	return out, nil
}

// AddDocument suma un documento a un request aún abierto, para que pueda
// alcanzar el gate documental.
func (s *Service) AddDocument(ctx context.Context, requestID string, act actor.Actor, in DocumentInput) (Document, error) {
	if !act.Valid() {
		return Document{}, ErrInvalidInput
	}
	if err := validateDocumentInput(in); err != nil {
		return Document{}, err
	}

	var out Document
	err := s.tx.InTx(ctx, func(ctx context.Context, h *txn.Hooks) error {
		req, err := s.repo.GetByID(ctx, requestID)
		if err != nil {
			return err
		}
		if req.RequesterUserID != act.UserID {
			return ErrForbidden
		}
		if req.Status.Terminal() {
			return fmt.Errorf("%w: request is %s", ErrBadState, req.Status)
		}

		doc, err := s.uploadDocument(ctx, h, requestID, in, s.now())
		if err != nil {
			return err
		}
		out = doc
		return nil
	})
	if err != nil {
		return Document{}, err
	}
	return out, nil
}

// MarkInReview mueve pending -> in_review. Exige el gate documental.
func (s *Service) MarkInReview(ctx context.Context, requestID string, reviewer actor.Actor) (AdoptionRequest, error) {
	if !reviewer.Privileged() {
		return AdoptionRequest{}, ErrForbidden
	}

	var out AdoptionRequest
	err := s.tx.InTx(ctx, func(ctx context.Context, _ *txn.Hooks) error {
		req, err := s.repo.GetByID(ctx, requestID)
		if err != nil {
			return err
		}
		if !req.Status.CanTransition(StatusInReview) {
			return fmt.Errorf("%w: cannot move %s to %s", ErrBadState, req.Status, StatusInReview)
		}
		if req.DistinctDocumentTypes() < MinDocumentTypes {
			return fmt.Errorf("%w: at least %d distinct document types required", ErrBadState, MinDocumentTypes)
		}

		req.Status = StatusInReview
		req.ReviewerUserID = reviewer.UserID
		if err := s.repo.Update(ctx, req); err != nil {
			return err
		}
		req.Version++
		out = req
		return nil
	})
	return out, err
}

// Accept es la transición con efectos cruzados: el listing pasa a adopted y
// todo hermano no terminal se rechaza en cascada, estampando reviewer y
// timestamp. Los hermanos se leen dentro de la misma transacción que la
// aceptación para no correr contra otra aceptación concurrente.
func (s *Service) Accept(ctx context.Context, requestID string, reviewer actor.Actor) (AdoptionRequest, error) {
	if !reviewer.Privileged() {
		return AdoptionRequest{}, ErrForbidden
	}

	var out AdoptionRequest
	err := s.tx.InTx(ctx, func(ctx context.Context, _ *txn.Hooks) error {
		req, err := s.repo.GetByID(ctx, requestID)
		if err != nil {
			return err
		}
		if !req.Status.CanTransition(StatusAccepted) {
			return fmt.Errorf("%w: cannot accept a %s request", ErrBadState, req.Status)
		}
		if req.DistinctDocumentTypes() < MinDocumentTypes {
			return fmt.Errorf("%w: at least %d distinct document types required", ErrBadState, MinDocumentTypes)
		}

		lst, err := s.listings.GetByID(ctx, req.ListingID)
		if err != nil {
			return mapListingErr(err)
		}
		if lst.RevisionState != listings.RevisionApproved || lst.AdoptionState != listings.AdoptionAvailable {
			return fmt.Errorf("%w: listing not available", ErrBadState)
		}

		siblings, err := s.repo.ListByListing(ctx, req.ListingID)
		if err != nil {
			return err
		}
		for _, sib := range siblings {
			if sib.ID != req.ID && sib.Status == StatusAccepted {
				return fmt.Errorf("%w: listing already has an accepted request", ErrConflict)
			}
		}

		now := s.now()

		req.Status = StatusAccepted
		req.ReviewerUserID = reviewer.UserID
		req.RespondedAt = &now
		if err := s.repo.Update(ctx, req); err != nil {
			return err
		}
		req.Version++

		// La escritura sobre el listing va guardada por su versión: una
		// aceptación concurrente sobre el mismo listing pierde con conflict.
		lst.AdoptionState = listings.AdoptionAdopted
		lst.UpdatedAt = now
		if err := s.listings.Update(ctx, lst); err != nil {
			return mapListingErr(err)
		}

		for _, sib := range siblings {
			if sib.ID == req.ID || sib.Status.Terminal() {
				continue
			}
			sib.Status = StatusRejected
			sib.ReviewerUserID = reviewer.UserID
			sib.RespondedAt = &now
			if err := s.repo.Update(ctx, sib); err != nil {
				return err
			}
		}

		out = req
		return nil
	})
	return out, err
}

// Reject rechaza un request pending o in_review. Un accepted no se rechaza
// por acá: para eso está Revert.
func (s *Service) Reject(ctx context.Context, requestID string, reviewer actor.Actor) (AdoptionRequest, error) {
	if !reviewer.Privileged() {
		return AdoptionRequest{}, ErrForbidden
	}

	var out AdoptionRequest
	err := s.tx.InTx(ctx, func(ctx context.Context, _ *txn.Hooks) error {
		req, err := s.repo.GetByID(ctx, requestID)
		if err != nil {
			return err
		}
		if req.Status != StatusPending && req.Status != StatusInReview {
			return fmt.Errorf("%w: cannot reject a %s request", ErrBadState, req.Status)
		}

		now := s.now()
		req.Status = StatusRejected
		req.ReviewerUserID = reviewer.UserID
		req.RespondedAt = &now
		if err := s.repo.Update(ctx, req); err != nil {
			return err
		}
		req.Version++
		out = req
		return nil
	})
	return out, err
}

// Cancel lo ejecuta solo el solicitante, y solo desde pending o in_review.
func (s *Service) Cancel(ctx context.Context, requestID string, act actor.Actor) (AdoptionRequest, error) {
	if !act.Valid() {
		return AdoptionRequest{}, ErrInvalidInput
	}

	var out AdoptionRequest
	err := s.tx.InTx(ctx, func(ctx context.Context, _ *txn.Hooks) error {
		req, err := s.repo.GetByID(ctx, requestID)
		if err != nil {
			return err
		}
		if req.RequesterUserID != act.UserID {
			return ErrForbidden
		}
		if !req.Status.CanTransition(StatusCancelled) {
			return fmt.Errorf("%w: cannot cancel a %s request", ErrBadState, req.Status)
		}

		now := s.now()
		req.Status = StatusCancelled
		req.RespondedAt = &now
		if err := s.repo.Update(ctx, req); err != nil {
			return err
		}
		req.Version++
		out = req
		return nil
	})
	return out, err
}

// Revert deshace una aceptación: el request pasa a rejected y, si el listing
// sigue aprobado y quedó adopted, vuelve a available. Si la revisión del
// listing ya no está aprobada no se re-publica en silencio: falla.
func (s *Service) Revert(ctx context.Context, requestID string, reviewer actor.Actor) (AdoptionRequest, error) {
	if !reviewer.Privileged() {
		return AdoptionRequest{}, ErrForbidden
	}

	var out AdoptionRequest
	err := s.tx.InTx(ctx, func(ctx context.Context, _ *txn.Hooks) error {
		req, err := s.repo.GetByID(ctx, requestID)
		if err != nil {
			return err
		}
		if req.Status != StatusAccepted {
			return fmt.Errorf("%w: only accepted requests can be reverted", ErrBadState)
		}

		lst, err := s.listings.GetByID(ctx, req.ListingID)
		if err != nil {
			return mapListingErr(err)
		}
		if lst.RevisionState != listings.RevisionApproved {
			return fmt.Errorf("%w: listing no longer approved", ErrBadState)
		}

		now := s.now()
		req.Status = StatusRejected
		req.ReviewerUserID = reviewer.UserID
		req.RespondedAt = &now
		if err := s.repo.Update(ctx, req); err != nil {
			return err
		}
		req.Version++

		if lst.AdoptionState == listings.AdoptionAdopted {
			lst.AdoptionState = listings.AdoptionAvailable
			lst.UpdatedAt = now
			if err := s.listings.Update(ctx, lst); err != nil {
				return mapListingErr(err)
			}
		}

		out = req
		return nil
	})
	return out, err
}

// UpdateMessage edita el mensaje mientras el request sigue pending.
func (s *Service) UpdateMessage(ctx context.Context, requestID string, act actor.Actor, message string) (AdoptionRequest, error) {
	if !act.Valid() {
		return AdoptionRequest{}, ErrInvalidInput
	}

	var out AdoptionRequest
	err := s.tx.InTx(ctx, func(ctx context.Context, _ *txn.Hooks) error {
		req, err := s.repo.GetByID(ctx, requestID)
		if err != nil {
			return err
		}
		if req.RequesterUserID != act.UserID {
			return ErrForbidden
		}
		if req.Status != StatusPending {
			return fmt.Errorf("%w: request is %s", ErrBadState, req.Status)
		}

		req.Message = strings.TrimSpace(message)
		if err := s.repo.Update(ctx, req); err != nil {
			return err
		}
		req.Version++
		out = req
		return nil
	})
	return out, err
}

// Delete: el solicitante solo mientras está pending; un administrador en
// cualquier estado. El borrado de documentos en storage queda post-commit.
func (s *Service) Delete(ctx context.Context, requestID string, act actor.Actor) error {
	if !act.Valid() {
		return ErrInvalidInput
	}

	return s.tx.InTx(ctx, func(ctx context.Context, h *txn.Hooks) error {
		req, err := s.repo.GetByID(ctx, requestID)
		if err != nil {
			return err
		}
		if !act.Admin() {
			if req.RequesterUserID != act.UserID {
				return ErrForbidden
			}
			if req.Status != StatusPending {
				return fmt.Errorf("%w: request is %s", ErrBadState, req.Status)
			}
		}

		if err := s.repo.Delete(ctx, requestID); err != nil {
			return err
		}

		for _, d := range req.Documents {
			id := d.ID
			h.OnCommit(func(ctx context.Context) error {
				return s.store.Delete(ctx, storage.KindDocument, id)
			})
		}
		return nil
	})
}

// GetByID lo ve el solicitante o un actor privilegiado.
func (s *Service) GetByID(ctx context.Context, requestID string, act actor.Actor) (AdoptionRequest, error) {
	if !act.Valid() {
		return AdoptionRequest{}, ErrInvalidInput
	}
	req, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		return AdoptionRequest{}, err
	}
	if req.RequesterUserID != act.UserID && !act.Privileged() {
		return AdoptionRequest{}, ErrForbidden
	}
	return req, nil
}

// ListByListing lo ve el dueño del listing o un actor privilegiado.
func (s *Service) ListByListing(ctx context.Context, listingID string, act actor.Actor) ([]AdoptionRequest, error) {
	if !act.Valid() {
		return nil, ErrInvalidInput
	}
	if !act.Privileged() {
		lst, err := s.listings.GetByID(ctx, listingID)
		if err != nil {
			return nil, mapListingErr(err)
		}
		if lst.OwnerUserID != act.UserID {
			return nil, ErrForbidden
		}
	}
	return s.repo.ListByListing(ctx, listingID)
}

func (s *Service) ListByRequester(ctx context.Context, act actor.Actor) ([]AdoptionRequest, error) {
	if !act.Valid() {
		return nil, ErrInvalidInput
	}
	return s.repo.ListByRequester(ctx, act.UserID)
}

// uploadDocument sube el asset, registra el hook de rollback y persiste la
// fila. Si la fila falla después de una subida exitosa, borra el asset
// sincrónicamente y re-lanza: ningún asset queda subido sin referencia.
func (s *Service) uploadDocument(ctx context.Context, h *txn.Hooks, requestID string, in DocumentInput, now time.Time) (Document, error) {
	id := uuid.NewString()
	if err := s.store.Upload(ctx, storage.KindDocument, id, bytes.NewReader(in.Data), in.ContentType); err != nil {
		return Document{}, err
	}

	doc := Document{
		ID:          id,
		Type:        strings.TrimSpace(in.Type),
		Filename:    strings.TrimSpace(in.Filename),
		ContentType: in.ContentType,
		Size:        int64(len(in.Data)),
		UploadedAt:  now,
	}

	if err := s.repo.AddDocument(ctx, requestID, doc); err != nil {
		// Compensación síncrona: la fila no quedó, el binario tampoco.
		if delErr := s.store.Delete(ctx, storage.KindDocument, id); delErr != nil {
			s.log.Warn("compensating delete failed", map[string]any{
				"document_id": id, "error": delErr.Error(),
			})
		}
		return Document{}, err
	}

	// Recién acá: si la fila falló, el borrado síncrono ya es el dueño de
	// la compensación.
	h.OnRollback(func(ctx context.Context) error {
		return s.store.Delete(ctx, storage.KindDocument, id)
	})
	return doc, nil
}

func validateDocumentInput(in DocumentInput) error {
	if strings.TrimSpace(in.Type) == "" {
		return ErrInvalidInput
	}
	if err := storage.ValidateUpload(storage.KindDocument, in.ContentType, int64(len(in.Data))); err != nil {
		return ErrInvalidInput
	}
	return nil
}

// mapListingErr traduce sentinelas del paquete listings a los de este
// paquete para que el boundary mapee un solo vocabulario.
func mapListingErr(err error) error {
	switch {
	case errors.Is(err, listings.ErrNotFound):
		return fmt.Errorf("listing: %w", ErrNotFound)
	case errors.Is(err, listings.ErrConflict):
		return fmt.Errorf("listing: %w", ErrConflict)
	}
	return err
}
