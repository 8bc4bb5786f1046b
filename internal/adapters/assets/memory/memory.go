package memory

import (
	"bytes"
	"context"
	"io"
	"sync"

	"dog-adoption-service/internal/ports/storage"
)

type object struct {
	data        []byte
	contentType string
}

// Store guarda los binarios en memoria. Se usa en modo dev sin backend
// configurado y en tests.
type Store struct {
	mu      sync.RWMutex
	objects map[string]object
}

func New() *Store {
	return &Store{objects: make(map[string]object)}
}

func key(kind storage.Kind, id string) string {
	return string(kind) + "/" + id
}

func (s *Store) Upload(ctx context.Context, kind storage.Kind, id string, r io.Reader, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key(kind, id)] = object{data: data, contentType: contentType}
	return nil
}

func (s *Store) Open(ctx context.Context, kind storage.Kind, id string) (io.ReadCloser, storage.ObjectInfo, error) {
	s.mu.RLock()
	obj, ok := s.objects[key(kind, id)]
	s.mu.RUnlock()
	if !ok {
		return nil, storage.ObjectInfo{}, storage.ErrObjectNotFound
	}
	info := storage.ObjectInfo{ContentType: obj.contentType, Size: int64(len(obj.data))}
	return io.NopCloser(bytes.NewReader(obj.data)), info, nil
}

func (s *Store) Stat(ctx context.Context, kind storage.Kind, id string) (storage.ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[key(kind, id)]
	if !ok {
		return storage.ObjectInfo{}, storage.ErrObjectNotFound
	}
	return storage.ObjectInfo{ContentType: obj.contentType, Size: int64(len(obj.data))}, nil
}

func (s *Store) Delete(ctx context.Context, kind storage.Kind, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.objects, key(kind, id))
	return nil
}

func (s *Store) PublicURL(kind storage.Kind, id string) string {
	return ""
}

func (s *Store) CloudBacked() bool {
	return false
}
