package local

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"dog-adoption-service/internal/ports/storage"
)

// Bytes mínimos de un PNG válido para la detección de content-type.
var pngHeader = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	return s
}

func TestStore_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Upload(ctx, storage.KindDog, "id-1", bytes.NewReader(pngHeader), "image/png"); err != nil {
		t.Fatalf("Upload error: %v", err)
	}

	rc, info, err := s.Open(ctx, storage.KindDog, "id-1")
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read error: %v", err)
	}
	if !bytes.Equal(data, pngHeader) {
		t.Fatalf("content mismatch")
	}
	if info.Size != int64(len(pngHeader)) {
		t.Fatalf("expected size %d, got %d", len(pngHeader), info.Size)
	}
	// El content-type se detecta de los bytes, no se guarda aparte.
	if info.ContentType != "image/png" {
		t.Fatalf("expected image/png, got %s", info.ContentType)
	}
}

func TestStore_KindsDoNotCollide(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Upload(ctx, storage.KindDog, "same-id", bytes.NewReader([]byte("dog")), ""); err != nil {
		t.Fatalf("Upload error: %v", err)
	}
	if err := s.Upload(ctx, storage.KindDocument, "same-id", bytes.NewReader([]byte("doc")), ""); err != nil {
		t.Fatalf("Upload error: %v", err)
	}

	rc, _, err := s.Open(ctx, storage.KindDocument, "same-id")
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "doc" {
		t.Fatalf("expected document content, got %q", data)
	}
}

func TestStore_OpenMissing_ReturnsNotFound(t *testing.T) {
	s := newTestStore(t)

	if _, _, err := s.Open(context.Background(), storage.KindDog, "ghost"); !errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound, got %v", err)
	}
}

func TestStore_Delete_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Upload(ctx, storage.KindDog, "id-1", bytes.NewReader([]byte("x")), ""); err != nil {
		t.Fatalf("Upload error: %v", err)
	}
	if err := s.Delete(ctx, storage.KindDog, "id-1"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	// Borrar lo ya borrado no falla.
	if err := s.Delete(ctx, storage.KindDog, "id-1"); err != nil {
		t.Fatalf("second Delete error: %v", err)
	}
}
