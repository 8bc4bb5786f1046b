package requests

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"dog-adoption-service/internal/domain/actor"
	"dog-adoption-service/internal/domain/listings"
	"dog-adoption-service/internal/platform/logger"
	"dog-adoption-service/internal/platform/txn"
	"dog-adoption-service/internal/ports/storage"
)

// -------------------------
// Test repo (in-memory)
// -------------------------

type testRepo struct {
	byID map[string]AdoptionRequest

	failAddDocument bool
}

func newTestRepo() *testRepo {
	return &testRepo{byID: map[string]AdoptionRequest{}}
}

func (r *testRepo) Create(ctx context.Context, req AdoptionRequest) error {
	if req.ID == "" {
		return errors.New("repo: id required")
	}
	if _, ok := r.byID[req.ID]; ok {
		return errors.New("repo: already exists")
	}
	r.byID[req.ID] = req
	return nil
}

func (r *testRepo) GetByID(ctx context.Context, id string) (AdoptionRequest, error) {
	req, ok := r.byID[id]
	if !ok {
		return AdoptionRequest{}, ErrNotFound
	}
	docs := make([]Document, len(req.Documents))
	copy(docs, req.Documents)
	req.Documents = docs
	return req, nil
}

func (r *testRepo) Update(ctx context.Context, req AdoptionRequest) error {
	cur, ok := r.byID[req.ID]
	if !ok {
		return ErrNotFound
	}
	if cur.Version != req.Version {
		return ErrConflict
	}
	req.Version = cur.Version + 1
	req.Documents = cur.Documents
	r.byID[req.ID] = req
	return nil
}

func (r *testRepo) Delete(ctx context.Context, id string) error {
	if _, ok := r.byID[id]; !ok {
		return ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

func (r *testRepo) ListByListing(ctx context.Context, listingID string) ([]AdoptionRequest, error) {
	out := make([]AdoptionRequest, 0)
	for _, req := range r.byID {
		if req.ListingID == listingID {
			out = append(out, req)
		}
	}
	return out, nil
}

func (r *testRepo) ListByRequester(ctx context.Context, requesterUserID string) ([]AdoptionRequest, error) {
	out := make([]AdoptionRequest, 0)
	for _, req := range r.byID {
		if req.RequesterUserID == requesterUserID {
			out = append(out, req)
		}
	}
	return out, nil
}

func (r *testRepo) AddDocument(ctx context.Context, requestID string, doc Document) error {
	if r.failAddDocument {
		r.failAddDocument = false
		return errors.New("repo: insert failed")
	}
	req, ok := r.byID[requestID]
	if !ok {
		return ErrNotFound
	}
	req.Documents = append(req.Documents, doc)
	r.byID[requestID] = req
	return nil
}

// -------------------------
// Test listings repo (solo lo que el engine de requests necesita)
// -------------------------

type testListings struct {
	byID map[string]listings.Listing
}

func newTestListings() *testListings {
	return &testListings{byID: map[string]listings.Listing{}}
}

func (r *testListings) seedAvailable(id, ownerID string) {
	r.byID[id] = listings.Listing{
		ID:            id,
		OwnerUserID:   ownerID,
		Name:          "Kira",
		RevisionState: listings.RevisionApproved,
		AdoptionState: listings.AdoptionAvailable,
		Version:       1,
	}
}

func (r *testListings) Create(ctx context.Context, l listings.Listing) error {
	r.byID[l.ID] = l
	return nil
}

func (r *testListings) GetByID(ctx context.Context, id string) (listings.Listing, error) {
	l, ok := r.byID[id]
	if !ok {
		return listings.Listing{}, listings.ErrNotFound
	}
	return l, nil
}

func (r *testListings) Update(ctx context.Context, l listings.Listing) error {
	cur, ok := r.byID[l.ID]
	if !ok {
		return listings.ErrNotFound
	}
	if cur.Version != l.Version {
		return listings.ErrConflict
	}
	l.Version = cur.Version + 1
	r.byID[l.ID] = l
	return nil
}

func (r *testListings) Delete(ctx context.Context, id string) error {
	delete(r.byID, id)
	return nil
}

func (r *testListings) ListByOwner(ctx context.Context, ownerUserID string) ([]listings.Listing, error) {
	return nil, nil
}

func (r *testListings) ListPublic(ctx context.Context) ([]listings.Listing, error) {
	return nil, nil
}

func (r *testListings) AddImage(ctx context.Context, listingID string, img listings.Image) error {
	return nil
}

func (r *testListings) RemoveImages(ctx context.Context, listingID string, imageIDs []string) error {
	return nil
}

func (r *testListings) ClearPrincipal(ctx context.Context, listingID string) error { return nil }

func (r *testListings) SetPrincipal(ctx context.Context, listingID, imageID string) error {
	return nil
}

// -------------------------
// Test store
// -------------------------

type testStore struct {
	objects  map[string][]byte
	deleted  []string
	failNext bool
}

func newTestStore() *testStore {
	return &testStore{objects: map[string][]byte{}}
}

func (s *testStore) key(kind storage.Kind, id string) string { return string(kind) + "/" + id }

func (s *testStore) Upload(ctx context.Context, kind storage.Kind, id string, r io.Reader, contentType string) error {
	if s.failNext {
		s.failNext = false
		return errors.New("store: upload failed")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.objects[s.key(kind, id)] = data
	return nil
}

func (s *testStore) Open(ctx context.Context, kind storage.Kind, id string) (io.ReadCloser, storage.ObjectInfo, error) {
	data, ok := s.objects[s.key(kind, id)]
	if !ok {
		return nil, storage.ObjectInfo{}, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), storage.ObjectInfo{Size: int64(len(data))}, nil
}

func (s *testStore) Stat(ctx context.Context, kind storage.Kind, id string) (storage.ObjectInfo, error) {
	data, ok := s.objects[s.key(kind, id)]
	if !ok {
		return storage.ObjectInfo{}, storage.ErrObjectNotFound
	}
	return storage.ObjectInfo{Size: int64(len(data))}, nil
}

func (s *testStore) Delete(ctx context.Context, kind storage.Kind, id string) error {
	delete(s.objects, s.key(kind, id))
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *testStore) PublicURL(kind storage.Kind, id string) string { return "" }
func (s *testStore) CloudBacked() bool                             { return false }

// -------------------------
// Helpers
// -------------------------

var (
	owner     = actor.New("owner-1", actor.RoleAdopter)
	requester = actor.New("adopter-1", actor.RoleAdopter)
	rival     = actor.New("adopter-2", actor.RoleAdopter)
	moderator = actor.New("mod-1", actor.RoleModerator)
	admin     = actor.New("admin-1", actor.RoleAdmin)
)

func newTestService() (*Service, *testRepo, *testListings, *testStore) {
	repo := newTestRepo()
	lst := newTestListings()
	store := newTestStore()
	log := logger.New(logger.Options{Level: logger.Error})
	svc := NewService(repo, lst, store, txn.Passthrough{}, log)
	return svc, repo, lst, store
}

func pdfDoc(docType string) DocumentInput {
	return DocumentInput{
		Type:        docType,
		Filename:    docType + ".pdf",
		ContentType: "application/pdf",
		Data:        []byte("%PDF-1.4"),
	}
}

func mustCreate(t *testing.T, svc *Service, act actor.Actor, listingID string) AdoptionRequest {
	t.Helper()
	req, err := svc.Create(context.Background(), act, CreateInput{
		ListingID: listingID,
		Message:   "quiero adoptarlo",
		Document:  pdfDoc("id_proof"),
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	return req
}

func readyForReview(t *testing.T, svc *Service, req AdoptionRequest, act actor.Actor) {
	t.Helper()
	if _, err := svc.AddDocument(context.Background(), req.ID, act, pdfDoc("home_check")); err != nil {
		t.Fatalf("AddDocument error: %v", err)
	}
}

// -------------------------
// Tests
// -------------------------

func TestService_Create_PendingWithInitialDocument(t *testing.T) {
	svc, _, lst, store := newTestService()
	lst.seedAvailable("listing-1", owner.UserID)

	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	req := mustCreate(t, svc, requester, "listing-1")

	if req.Status != StatusPending {
		t.Fatalf("expected pending, got %s", req.Status)
	}
	if req.SubmittedAt != now {
		t.Fatalf("expected SubmittedAt stamped")
	}
	if len(req.Documents) != 1 || req.Documents[0].Type != "id_proof" {
		t.Fatalf("expected initial document, got %#v", req.Documents)
	}
	if len(store.objects) != 1 {
		t.Fatalf("expected document uploaded, got %d objects", len(store.objects))
	}
}

func TestService_Create_RejectsOwnListing(t *testing.T) {
	svc, _, lst, _ := newTestService()
	lst.seedAvailable("listing-1", owner.UserID)

	_, err := svc.Create(context.Background(), owner, CreateInput{
		ListingID: "listing-1",
		Document:  pdfDoc("id_proof"),
	})
	if !errors.Is(err, ErrBadState) {
		t.Fatalf("expected ErrBadState, got %v", err)
	}
}

func TestService_Create_RejectsUnavailableListing(t *testing.T) {
	svc, _, lst, _ := newTestService()

	l := listings.Listing{
		ID:            "listing-1",
		OwnerUserID:   owner.UserID,
		RevisionState: listings.RevisionPending,
		AdoptionState: listings.AdoptionPending,
		Version:       1,
	}
	_ = lst.Create(context.Background(), l)

	_, err := svc.Create(context.Background(), requester, CreateInput{
		ListingID: "listing-1",
		Document:  pdfDoc("id_proof"),
	})
	if !errors.Is(err, ErrBadState) {
		t.Fatalf("expected ErrBadState, got %v", err)
	}
}

func TestService_Create_NoOrphanObjectWhenUploadFails(t *testing.T) {
	svc, _, lst, store := newTestService()
	lst.seedAvailable("listing-1", owner.UserID)

	store.failNext = true
	_, err := svc.Create(context.Background(), requester, CreateInput{
		ListingID: "listing-1",
		Document:  pdfDoc("id_proof"),
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if len(store.objects) != 0 {
		t.Fatalf("expected no orphan objects, got %d", len(store.objects))
	}
}

func TestService_Create_DeletesAssetWhenDocumentRowFails(t *testing.T) {
	svc, repo, lst, store := newTestService()
	lst.seedAvailable("listing-1", owner.UserID)

	// El binario sube bien pero la fila del documento no persiste: el asset
	// recién subido se borra en el acto.
	repo.failAddDocument = true
	_, err := svc.Create(context.Background(), requester, CreateInput{
		ListingID: "listing-1",
		Document:  pdfDoc("id_proof"),
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if len(store.objects) != 0 {
		t.Fatalf("expected asset deleted after failed document persist, got %d objects", len(store.objects))
	}
}

func TestService_MarkInReview_RequiresDocumentGate(t *testing.T) {
	svc, _, lst, _ := newTestService()
	lst.seedAvailable("listing-1", owner.UserID)

	req := mustCreate(t, svc, requester, "listing-1")

	// un solo tipo de documento: gate cerrado
	if _, err := svc.MarkInReview(context.Background(), req.ID, moderator); !errors.Is(err, ErrBadState) {
		t.Fatalf("expected ErrBadState with one document type, got %v", err)
	}

	// mismo tipo repetido no abre el gate
	if _, err := svc.AddDocument(context.Background(), req.ID, requester, pdfDoc("id_proof")); err != nil {
		t.Fatalf("AddDocument error: %v", err)
	}
	if _, err := svc.MarkInReview(context.Background(), req.ID, moderator); !errors.Is(err, ErrBadState) {
		t.Fatalf("expected ErrBadState with duplicate types, got %v", err)
	}

	readyForReview(t, svc, req, requester)
	out, err := svc.MarkInReview(context.Background(), req.ID, moderator)
	if err != nil {
		t.Fatalf("MarkInReview error: %v", err)
	}
	if out.Status != StatusInReview {
		t.Fatalf("expected in_review, got %s", out.Status)
	}
}

func TestService_Accept_AdoptsListing_AndCascadesRejects(t *testing.T) {
	svc, repo, lst, _ := newTestService()
	lst.seedAvailable("listing-1", owner.UserID)

	winner := mustCreate(t, svc, requester, "listing-1")
	readyForReview(t, svc, winner, requester)

	loser := mustCreate(t, svc, rival, "listing-1")

	now := time.Date(2026, 4, 2, 15, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	accepted, err := svc.Accept(context.Background(), winner.ID, moderator)
	if err != nil {
		t.Fatalf("Accept error: %v", err)
	}
	if accepted.Status != StatusAccepted {
		t.Fatalf("expected accepted, got %s", accepted.Status)
	}
	if accepted.ReviewerUserID != moderator.UserID || accepted.RespondedAt == nil || !accepted.RespondedAt.Equal(now) {
		t.Fatalf("expected reviewer stamp on acceptance")
	}

	l, _ := lst.GetByID(context.Background(), "listing-1")
	if l.AdoptionState != listings.AdoptionAdopted {
		t.Fatalf("expected listing adopted, got %s", l.AdoptionState)
	}

	got, _ := repo.GetByID(context.Background(), loser.ID)
	if got.Status != StatusRejected {
		t.Fatalf("expected sibling force-rejected, got %s", got.Status)
	}
	if got.ReviewerUserID != moderator.UserID || got.RespondedAt == nil {
		t.Fatalf("expected reviewer stamp on cascaded rejection")
	}
}

func TestService_Accept_RequiresDocumentGate(t *testing.T) {
	svc, _, lst, _ := newTestService()
	lst.seedAvailable("listing-1", owner.UserID)

	req := mustCreate(t, svc, requester, "listing-1")
	if _, err := svc.Accept(context.Background(), req.ID, moderator); !errors.Is(err, ErrBadState) {
		t.Fatalf("expected ErrBadState, got %v", err)
	}
}

func TestService_Accept_SecondAcceptFailsAfterCascade(t *testing.T) {
	svc, _, lst, _ := newTestService()
	lst.seedAvailable("listing-1", owner.UserID)

	first := mustCreate(t, svc, requester, "listing-1")
	readyForReview(t, svc, first, requester)

	second := mustCreate(t, svc, rival, "listing-1")
	readyForReview(t, svc, second, rival)

	if _, err := svc.Accept(context.Background(), first.ID, moderator); err != nil {
		t.Fatalf("Accept #1 error: %v", err)
	}

	// El segundo fue rechazado en cascada y el listing quedó adopted:
	// una segunda aceptación falla limpio.
	_, err := svc.Accept(context.Background(), second.ID, moderator)
	if !errors.Is(err, ErrBadState) {
		t.Fatalf("expected ErrBadState on rejected sibling, got %v", err)
	}
}

func TestService_Accept_ConflictOnDirtyAcceptedSibling(t *testing.T) {
	// Guard de datos sucios: listing todavía available pero con un hermano
	// accepted que la cascada no alcanzó a rechazar.
	svc, repo, lst, _ := newTestService()
	lst.seedAvailable("listing-1", owner.UserID)

	req := mustCreate(t, svc, requester, "listing-1")
	readyForReview(t, svc, req, requester)

	dirty := AdoptionRequest{
		ID:              "dirty-1",
		ListingID:       "listing-1",
		RequesterUserID: rival.UserID,
		Status:          StatusAccepted,
		SubmittedAt:     time.Now(),
		Version:         1,
	}
	if err := repo.Create(context.Background(), dirty); err != nil {
		t.Fatalf("seed error: %v", err)
	}

	if _, err := svc.Accept(context.Background(), req.ID, moderator); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestService_Reject_NotForAcceptedRequests(t *testing.T) {
	svc, _, lst, _ := newTestService()
	lst.seedAvailable("listing-1", owner.UserID)

	req := mustCreate(t, svc, requester, "listing-1")
	readyForReview(t, svc, req, requester)

	if _, err := svc.Accept(context.Background(), req.ID, moderator); err != nil {
		t.Fatalf("Accept error: %v", err)
	}
	if _, err := svc.Reject(context.Background(), req.ID, moderator); !errors.Is(err, ErrBadState) {
		t.Fatalf("expected ErrBadState, got %v", err)
	}
}

func TestService_Cancel_OnlyRequester_AndOnlyOpen(t *testing.T) {
	svc, _, lst, _ := newTestService()
	lst.seedAvailable("listing-1", owner.UserID)

	req := mustCreate(t, svc, requester, "listing-1")

	if _, err := svc.Cancel(context.Background(), req.ID, rival); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-requester, got %v", err)
	}

	out, err := svc.Cancel(context.Background(), req.ID, requester)
	if err != nil {
		t.Fatalf("Cancel error: %v", err)
	}
	if out.Status != StatusCancelled {
		t.Fatalf("expected cancelled, got %s", out.Status)
	}

	// cancelar dos veces no es idempotente: el estado ya es terminal
	if _, err := svc.Cancel(context.Background(), req.ID, requester); !errors.Is(err, ErrBadState) {
		t.Fatalf("expected ErrBadState on second cancel, got %v", err)
	}
}

func TestService_Revert_RestoresListingAvailability(t *testing.T) {
	svc, _, lst, _ := newTestService()
	lst.seedAvailable("listing-1", owner.UserID)

	req := mustCreate(t, svc, requester, "listing-1")
	readyForReview(t, svc, req, requester)

	if _, err := svc.Accept(context.Background(), req.ID, moderator); err != nil {
		t.Fatalf("Accept error: %v", err)
	}

	out, err := svc.Revert(context.Background(), req.ID, moderator)
	if err != nil {
		t.Fatalf("Revert error: %v", err)
	}
	if out.Status != StatusRejected {
		t.Fatalf("expected rejected after revert, got %s", out.Status)
	}

	l, _ := lst.GetByID(context.Background(), "listing-1")
	if l.AdoptionState != listings.AdoptionAvailable {
		t.Fatalf("expected listing back to available, got %s", l.AdoptionState)
	}
}

func TestService_Revert_FailsWhenListingNoLongerApproved(t *testing.T) {
	svc, _, lst, _ := newTestService()
	lst.seedAvailable("listing-1", owner.UserID)

	req := mustCreate(t, svc, requester, "listing-1")
	readyForReview(t, svc, req, requester)

	if _, err := svc.Accept(context.Background(), req.ID, moderator); err != nil {
		t.Fatalf("Accept error: %v", err)
	}

	// La revisión del listing se cae después de la adopción.
	l, _ := lst.GetByID(context.Background(), "listing-1")
	l.RevisionState = listings.RevisionRejected
	if err := lst.Update(context.Background(), l); err != nil {
		t.Fatalf("seed update error: %v", err)
	}

	if _, err := svc.Revert(context.Background(), req.ID, moderator); !errors.Is(err, ErrBadState) {
		t.Fatalf("expected ErrBadState, got %v", err)
	}

	// El request sigue accepted: nada se re-publica en silencio.
	got, _ := svc.GetByID(context.Background(), req.ID, moderator)
	if got.Status != StatusAccepted {
		t.Fatalf("expected request untouched, got %s", got.Status)
	}
}

func TestService_UpdateMessage_OnlyWhilePending(t *testing.T) {
	svc, _, lst, _ := newTestService()
	lst.seedAvailable("listing-1", owner.UserID)

	req := mustCreate(t, svc, requester, "listing-1")

	out, err := svc.UpdateMessage(context.Background(), req.ID, requester, "mensaje nuevo")
	if err != nil {
		t.Fatalf("UpdateMessage error: %v", err)
	}
	if out.Message != "mensaje nuevo" {
		t.Fatalf("expected message updated, got %q", out.Message)
	}

	readyForReview(t, svc, req, requester)
	if _, err := svc.MarkInReview(context.Background(), req.ID, moderator); err != nil {
		t.Fatalf("MarkInReview error: %v", err)
	}
	if _, err := svc.UpdateMessage(context.Background(), req.ID, requester, "tarde"); !errors.Is(err, ErrBadState) {
		t.Fatalf("expected ErrBadState once in review, got %v", err)
	}
}

func TestService_Delete_RequesterWhilePending_AdminAlways(t *testing.T) {
	svc, _, lst, store := newTestService()
	lst.seedAvailable("listing-1", owner.UserID)

	req := mustCreate(t, svc, requester, "listing-1")
	docID := req.Documents[0].ID

	if err := svc.Delete(context.Background(), req.ID, rival); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for stranger, got %v", err)
	}

	if err := svc.Delete(context.Background(), req.ID, requester); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	found := false
	for _, d := range store.deleted {
		if d == docID {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected document asset deleted with the request")
	}

	// El requester no puede borrar una vez fuera de pending; el admin sí.
	req2 := mustCreate(t, svc, requester, "listing-1")
	readyForReview(t, svc, req2, requester)
	if _, err := svc.MarkInReview(context.Background(), req2.ID, moderator); err != nil {
		t.Fatalf("MarkInReview error: %v", err)
	}
	if err := svc.Delete(context.Background(), req2.ID, requester); !errors.Is(err, ErrBadState) {
		t.Fatalf("expected ErrBadState for requester delete in review, got %v", err)
	}
	if err := svc.Delete(context.Background(), req2.ID, admin); err != nil {
		t.Fatalf("admin delete error: %v", err)
	}
}

func TestService_AddDocument_OnlyOpenRequests(t *testing.T) {
	svc, _, lst, _ := newTestService()
	lst.seedAvailable("listing-1", owner.UserID)

	req := mustCreate(t, svc, requester, "listing-1")
	if _, err := svc.Cancel(context.Background(), req.ID, requester); err != nil {
		t.Fatalf("Cancel error: %v", err)
	}

	if _, err := svc.AddDocument(context.Background(), req.ID, requester, pdfDoc("home_check")); !errors.Is(err, ErrBadState) {
		t.Fatalf("expected ErrBadState on terminal request, got %v", err)
	}
}

func TestService_GetByID_Visibility(t *testing.T) {
	svc, _, lst, _ := newTestService()
	lst.seedAvailable("listing-1", owner.UserID)

	req := mustCreate(t, svc, requester, "listing-1")

	if _, err := svc.GetByID(context.Background(), req.ID, rival); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for stranger, got %v", err)
	}
	if _, err := svc.GetByID(context.Background(), req.ID, requester); err != nil {
		t.Fatalf("requester read error: %v", err)
	}
	if _, err := svc.GetByID(context.Background(), req.ID, moderator); err != nil {
		t.Fatalf("moderator read error: %v", err)
	}
}
