package local

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"

	"dog-adoption-service/internal/ports/storage"
)

// Store persiste los binarios en disco bajo root/<kind>/<id>, sin extensión.
// El content-type no se guarda aparte: se detecta de los primeros bytes al
// leer.
type Store struct {
	root string
}

func New(root string) (*Store, error) {
	if root == "" {
		return nil, errors.New("storage root required")
	}
	for _, kind := range []storage.Kind{storage.KindDog, storage.KindProfile, storage.KindDocument} {
		if err := os.MkdirAll(filepath.Join(root, string(kind)), 0o755); err != nil {
			return nil, err
		}
	}
	return &Store{root: root}, nil
}

func (s *Store) path(kind storage.Kind, id string) string {
	return filepath.Join(s.root, string(kind), id)
}

// Upload escribe a un archivo temporal y renombra, para que un lector
// concurrente nunca vea un objeto a medio escribir.
func (s *Store) Upload(ctx context.Context, kind storage.Kind, id string, r io.Reader, contentType string) error {
	dst := s.path(kind, id)
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}

func (s *Store) Open(ctx context.Context, kind storage.Kind, id string) (io.ReadCloser, storage.ObjectInfo, error) {
	f, err := os.Open(s.path(kind, id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, storage.ObjectInfo{}, storage.ErrObjectNotFound
		}
		return nil, storage.ObjectInfo{}, err
	}

	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, storage.ObjectInfo{}, err
	}

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		f.Close()
		return nil, storage.ObjectInfo{}, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, storage.ObjectInfo{}, err
	}

	info := storage.ObjectInfo{
		ContentType: http.DetectContentType(head[:n]),
		Size:        st.Size(),
	}
	return f, info, nil
}

func (s *Store) Stat(ctx context.Context, kind storage.Kind, id string) (storage.ObjectInfo, error) {
	rc, info, err := s.Open(ctx, kind, id)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	rc.Close()
	return info, nil
}

func (s *Store) Delete(ctx context.Context, kind storage.Kind, id string) error {
	err := os.Remove(s.path(kind, id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (s *Store) PublicURL(kind storage.Kind, id string) string {
	return ""
}

func (s *Store) CloudBacked() bool {
	return false
}
