package assets

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"dog-adoption-service/internal/platform/logger"
	"dog-adoption-service/internal/ports/storage"
)

// -------------------------
// Test ledger
// -------------------------

type testLedger struct {
	byID    map[string]StagedAsset
	failPut bool
}

func newTestLedger() *testLedger {
	return &testLedger{byID: map[string]StagedAsset{}}
}

func (l *testLedger) Put(ctx context.Context, a StagedAsset) error {
	if l.failPut {
		return errors.New("ledger: put failed")
	}
	l.byID[a.ID] = a
	return nil
}

func (l *testLedger) Get(ctx context.Context, id string) (StagedAsset, error) {
	a, ok := l.byID[id]
	if !ok {
		return StagedAsset{}, ErrNotFound
	}
	return a, nil
}

func (l *testLedger) Remove(ctx context.Context, id string) error {
	delete(l.byID, id)
	return nil
}

func (l *testLedger) ListOlderThan(ctx context.Context, cutoff time.Time) ([]StagedAsset, error) {
	out := make([]StagedAsset, 0)
	for _, a := range l.byID {
		if a.UploadedAt.Before(cutoff) {
			out = append(out, a)
		}
	}
	return out, nil
}

// -------------------------
// Test store
// -------------------------

type testStore struct {
	objects    map[string][]byte
	failDelete bool
}

func newTestStore() *testStore {
	return &testStore{objects: map[string][]byte{}}
}

func (s *testStore) key(kind storage.Kind, id string) string { return string(kind) + "/" + id }

func (s *testStore) Upload(ctx context.Context, kind storage.Kind, id string, r io.Reader, contentType string) error {
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
	if s.failDelete {
		return errors.New("store: delete failed")
	}
	delete(s.objects, s.key(kind, id))
	return nil
}

func (s *testStore) PublicURL(kind storage.Kind, id string) string {
	return "https://cdn.example.com/" + s.key(kind, id)
}

func (s *testStore) CloudBacked() bool { return false }

// -------------------------
// Tests
// -------------------------

func newTestService(ttl time.Duration) (*Service, *testLedger, *testStore) {
	ledger := newTestLedger()
	store := newTestStore()
	log := logger.New(logger.Options{Level: logger.Error})
	return NewService(ledger, store, log, ttl), ledger, store
}

func TestService_Upload_StagesAndLedgers(t *testing.T) {
	svc, ledger, store := newTestService(time.Hour)

	now := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	a, err := svc.Upload(context.Background(), UploadInput{
		Kind:        storage.KindDog,
		Filename:    "kira.jpg",
		ContentType: "image/jpeg",
		Data:        []byte{0xFF, 0xD8, 0xFF},
	})
	if err != nil {
		t.Fatalf("Upload error: %v", err)
	}
	if a.ID == "" {
		t.Fatalf("expected generated id")
	}
	if a.UploadedAt != now {
		t.Fatalf("expected UploadedAt stamped")
	}
	if _, err := ledger.Get(context.Background(), a.ID); err != nil {
		t.Fatalf("expected ledger entry: %v", err)
	}
	if _, ok := store.objects["dog/"+a.ID]; !ok {
		t.Fatalf("expected object stored under kind/id")
	}
}

func TestService_Upload_RejectsBadUploads(t *testing.T) {
	svc, _, _ := newTestService(time.Hour)

	cases := []UploadInput{
		{Kind: "weird", ContentType: "image/jpeg", Data: []byte("x")},
		{Kind: storage.KindDog, ContentType: "text/html", Data: []byte("x")},
		{Kind: storage.KindDog, ContentType: "image/jpeg", Data: nil},
	}
	for i, in := range cases {
		if _, err := svc.Upload(context.Background(), in); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("case %d: expected ErrInvalidInput, got %v", i, err)
		}
	}
}

func TestService_Upload_CompensatesWhenLedgerFails(t *testing.T) {
	svc, ledger, store := newTestService(time.Hour)
	ledger.failPut = true

	_, err := svc.Upload(context.Background(), UploadInput{
		Kind:        storage.KindDog,
		ContentType: "image/jpeg",
		Data:        []byte{0xFF, 0xD8, 0xFF},
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if len(store.objects) != 0 {
		t.Fatalf("expected uploaded object compensated, got %d", len(store.objects))
	}
}

func TestService_SweepOnce_RemovesOnlyStale(t *testing.T) {
	svc, ledger, store := newTestService(time.Hour)

	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	stale := StagedAsset{ID: "old", Kind: storage.KindDog, UploadedAt: now.Add(-2 * time.Hour)}
	fresh := StagedAsset{ID: "new", Kind: storage.KindDog, UploadedAt: now.Add(-time.Minute)}
	_ = ledger.Put(context.Background(), stale)
	_ = ledger.Put(context.Background(), fresh)
	store.objects["dog/old"] = []byte("x")
	store.objects["dog/new"] = []byte("x")

	removed, err := svc.SweepOnce(context.Background())
	if err != nil {
		t.Fatalf("SweepOnce error: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	if _, ok := store.objects["dog/old"]; ok {
		t.Fatalf("expected stale object deleted")
	}
	if _, ok := store.objects["dog/new"]; !ok {
		t.Fatalf("fresh object must survive")
	}
	if _, err := ledger.Get(context.Background(), "new"); err != nil {
		t.Fatalf("fresh ledger entry must survive: %v", err)
	}
}

func TestService_SweepOnce_KeepsEntryWhenDeleteFails(t *testing.T) {
	svc, ledger, store := newTestService(time.Hour)

	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	_ = ledger.Put(context.Background(), StagedAsset{ID: "old", Kind: storage.KindDog, UploadedAt: now.Add(-2 * time.Hour)})
	store.failDelete = true

	removed, err := svc.SweepOnce(context.Background())
	if err != nil {
		t.Fatalf("SweepOnce error: %v", err)
	}
	if removed != 0 {
		t.Fatalf("expected 0 removed, got %d", removed)
	}
	// La entrada queda para el próximo barrido.
	if _, err := ledger.Get(context.Background(), "old"); err != nil {
		t.Fatalf("expected ledger entry kept: %v", err)
	}
}

func TestService_RedirectURL_OnlyWhenCloudBacked(t *testing.T) {
	svc, _, _ := newTestService(time.Hour)

	if _, ok := svc.RedirectURL(storage.KindDog, "id-1"); ok {
		t.Fatalf("local store must not redirect")
	}
}
