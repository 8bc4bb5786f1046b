package assets

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"dog-adoption-service/internal/middleware"
	"dog-adoption-service/internal/ports/storage"

	"github.com/go-chi/chi/v5"
)

// RegisterPublicRoutes monta el read path de binarios. Los ids son UUIDs no
// adivinables; el acceso por id no exige autenticación.
func RegisterPublicRoutes(r chi.Router, svc *Service) {
	r.Get("/images/{kind}/{id}", serveObjectHandler(svc))
	r.Head("/images/{kind}/{id}", headObjectHandler(svc))
}

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Post("/uploads/{kind}", stageUploadHandler(svc))
}

type stagedAssetResponse struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	UploadedAt  time.Time `json:"uploaded_at"`
	URL         string    `json:"url"`
}

// stageUploadHandler sube un binario sin asociar todavía: el id devuelto se
// referencia después al crear o editar un listing. Lo que nunca se asocia lo
// levanta el sweeper.
func stageUploadHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		kind, err := storage.ParseKind(chi.URLParam(r, "kind"))
		if err != nil {
			http.Error(w, "unknown upload kind", http.StatusBadRequest)
			return
		}

		if err := r.ParseMultipartForm(storage.MaxUploadSize); err != nil {
			http.Error(w, "invalid multipart form", http.StatusBadRequest)
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "file is required", http.StatusBadRequest)
			return
		}
		defer file.Close()

		data, err := io.ReadAll(io.LimitReader(file, storage.MaxUploadSize+1))
		if err != nil {
			http.Error(w, "failed to read file", http.StatusBadRequest)
			return
		}

		a, err := svc.Upload(r.Context(), UploadInput{
			Kind:        kind,
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Data:        data,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, stagedAssetResponse{
			ID:          a.ID,
			Kind:        string(a.Kind),
			Filename:    a.Filename,
			ContentType: a.ContentType,
			Size:        a.Size,
			UploadedAt:  a.UploadedAt,
			URL:         "/images/" + string(a.Kind) + "/" + a.ID,
		})
	}
}

func serveObjectHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, err := storage.ParseKind(chi.URLParam(r, "kind"))
		if err != nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		id := chi.URLParam(r, "id")

		// Con backend cloud el contenido se sirve por redirect.
		if url, ok := svc.RedirectURL(kind, id); ok {
			w.Header().Set("Cache-Control", cacheControl)
			http.Redirect(w, r, url, http.StatusFound)
			return
		}

		rc, info, err := svc.Open(r.Context(), kind, id)
		if err != nil {
			writeObjectError(w, err)
			return
		}
		defer rc.Close()

		setObjectHeaders(w, info)
		_, _ = io.Copy(w, rc)
	}
}

func headObjectHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, err := storage.ParseKind(chi.URLParam(r, "kind"))
		if err != nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		id := chi.URLParam(r, "id")

		if url, ok := svc.RedirectURL(kind, id); ok {
			w.Header().Set("Cache-Control", cacheControl)
			http.Redirect(w, r, url, http.StatusFound)
			return
		}

		info, err := svc.Stat(r.Context(), kind, id)
		if err != nil {
			writeObjectError(w, err)
			return
		}

		setObjectHeaders(w, info)
		w.WriteHeader(http.StatusOK)
	}
}

// Los ids nunca se reutilizan, así que el contenido por URL es inmutable.
const cacheControl = "public, max-age=31536000, immutable"

func setObjectHeaders(w http.ResponseWriter, info storage.ObjectInfo) {
	w.Header().Set("Content-Type", info.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	w.Header().Set("Cache-Control", cacheControl)
}

func writeObjectError(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrObjectNotFound) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, storage.ErrInvalidUpload):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// writeJSON duplicado a propósito por módulo, igual que en listings.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
