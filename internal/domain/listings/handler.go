package listings

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"dog-adoption-service/internal/domain/actor"
	"dog-adoption-service/internal/middleware"
	"dog-adoption-service/internal/ports/storage"

	"github.com/go-chi/chi/v5"
)

// RegisterPublicRoutes monta el browse público: solo listings aprobados y
// disponibles, sin autenticación.
func RegisterPublicRoutes(r chi.Router, svc *Service) {
	r.Get("/listings", listPublicHandler(svc))
}

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Post("/listings", createListingHandler(svc))
	r.Get("/listings/{listingID}", getListingHandler(svc))
	r.Patch("/listings/{listingID}", updateListingHandler(svc))
	r.Delete("/listings/{listingID}", deleteListingHandler(svc))

	r.Post("/listings/{listingID}/images", addImageHandler(svc))

	// Moderación
	r.Post("/listings/{listingID}/approve", approveHandler(svc))
	r.Post("/listings/{listingID}/reject", rejectHandler(svc))
	r.Post("/listings/{listingID}/adoption-state", setAdoptionStateHandler(svc))

	r.Get("/me/listings", listMyListingsHandler(svc))
}

type imageRefRequest struct {
	ID        string `json:"id"`
	Caption   string `json:"caption"`
	Principal bool   `json:"principal"`
}

type createListingRequest struct {
	Name        string            `json:"name"`
	Age         int               `json:"age"`
	Sex         string            `json:"sex"`
	Size        string            `json:"size"`
	Breed       string            `json:"breed"`
	Description string            `json:"description"`
	Location    string            `json:"location"`
	Images      []imageRefRequest `json:"images"`
}

type updateListingRequest struct {
	// Punteros para PATCH real: nil = no tocar.
	Name        *string `json:"name"`
	Age         *int    `json:"age"`
	Sex         *string `json:"sex"`
	Size        *string `json:"size"`
	Breed       *string `json:"breed"`
	Description *string `json:"description"`
	Location    *string `json:"location"`
	// El set objetivo completo de imágenes. Ausente = no tocar.
	Images []imageRefRequest `json:"images"`
}

type imageResponse struct {
	ID         string    `json:"id"`
	Caption    string    `json:"caption"`
	Principal  bool      `json:"principal"`
	UploadedAt time.Time `json:"uploaded_at"`
	URL        string    `json:"url"`
}

type listingResponse struct {
	ID          string `json:"id"`
	OwnerUserID string `json:"owner_user_id"`

	Name        string `json:"name"`
	Age         int    `json:"age"`
	Sex         Sex    `json:"sex"`
	Size        Size   `json:"size"`
	Breed       string `json:"breed"`
	Description string `json:"description"`
	Location    string `json:"location"`

	RevisionState RevisionState `json:"revision_state"`
	AdoptionState AdoptionState `json:"adoption_state"`

	ReviewerUserID string     `json:"reviewer_user_id,omitempty"`
	ReviewedAt     *time.Time `json:"reviewed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   int64     `json:"version"`

	Images []imageResponse `json:"images"`
}

func createListingHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		act, ok := requestActor(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req createListingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		l, err := svc.Create(r.Context(), act, CreateInput{
			Name:        req.Name,
			Age:         req.Age,
			Sex:         req.Sex,
			Size:        req.Size,
			Breed:       req.Breed,
			Description: req.Description,
			Location:    req.Location,
			Images:      toImageRefs(req.Images),
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toListingResponse(l))
	}
}

func listPublicHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := svc.ListPublic(r.Context())
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		out := make([]listingResponse, 0, len(items))
		for _, l := range items {
			out = append(out, toListingResponse(l))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func getListingHandler(svc *Service) http.HandlerFunc {
	// El dueño y los privilegiados ven todo; el resto solo listings
	// publicados.
	return func(w http.ResponseWriter, r *http.Request) {
		act, ok := requestActor(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		l, err := svc.GetByID(r.Context(), chi.URLParam(r, "listingID"))
		if err != nil {
			writeDomainError(w, err)
			return
		}

		if l.OwnerUserID != act.UserID && !act.Privileged() {
			if l.RevisionState != RevisionApproved || l.AdoptionState != AdoptionAvailable {
				http.Error(w, "listing not found", http.StatusNotFound)
				return
			}
		}

		writeJSON(w, http.StatusOK, toListingResponse(l))
	}
}

func updateListingHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		act, ok := requestActor(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		// Decodificar a map primero para distinguir "images" ausente de
		// "images": [].
		var raw map[string]json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		var req updateListingRequest
		{
			b, _ := json.Marshal(raw)
			if err := json.Unmarshal(b, &req); err != nil {
				http.Error(w, "invalid json", http.StatusBadRequest)
				return
			}
		}
		_, imagesSet := raw["images"]

		l, err := svc.Update(r.Context(), chi.URLParam(r, "listingID"), act, UpdateInput{
			Name:        req.Name,
			Age:         req.Age,
			Sex:         req.Sex,
			Size:        req.Size,
			Breed:       req.Breed,
			Description: req.Description,
			Location:    req.Location,
			Images:      toImageRefs(req.Images),
			ImagesSet:   imagesSet,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toListingResponse(l))
	}
}

func deleteListingHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		act, ok := requestActor(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		if err := svc.Delete(r.Context(), chi.URLParam(r, "listingID"), act); err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// addImageHandler recibe multipart/form-data con el archivo en "file",
// más "caption" y "principal" opcionales.
func addImageHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		act, ok := requestActor(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
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

		img, err := svc.AddImage(r.Context(), chi.URLParam(r, "listingID"), act, AddImageInput{
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Data:        data,
			Caption:     r.FormValue("caption"),
			Principal:   r.FormValue("principal") == "true",
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toImageResponse(img))
	}
}

func approveHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		act, ok := requestActor(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		l, err := svc.Approve(r.Context(), chi.URLParam(r, "listingID"), act)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toListingResponse(l))
	}
}

func rejectHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		act, ok := requestActor(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		l, err := svc.Reject(r.Context(), chi.URLParam(r, "listingID"), act)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toListingResponse(l))
	}
}

type setAdoptionStateRequest struct {
	State string `json:"state"`
}

func setAdoptionStateHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		act, ok := requestActor(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req setAdoptionStateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		l, err := svc.SetAdoptionState(r.Context(), chi.URLParam(r, "listingID"), act, AdoptionState(req.State))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toListingResponse(l))
	}
}

func listMyListingsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		act, ok := requestActor(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		items, err := svc.ListByOwner(r.Context(), act)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		out := make([]listingResponse, 0, len(items))
		for _, l := range items {
			out = append(out, toListingResponse(l))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func requestActor(r *http.Request) (actor.Actor, bool) {
	claims, ok := middleware.GetClaims(r.Context())
	if !ok || strings.TrimSpace(claims.UserID) == "" {
		return actor.Actor{}, false
	}
	return actor.New(claims.UserID, actor.Role(claims.Role)), true
}

func toImageRefs(in []imageRefRequest) []ImageRef {
	if len(in) == 0 {
		return nil
	}
	out := make([]ImageRef, 0, len(in))
	for _, ref := range in {
		out = append(out, ImageRef{ID: ref.ID, Caption: ref.Caption, Principal: ref.Principal})
	}
	return out
}

func toImageResponse(img Image) imageResponse {
	return imageResponse{
		ID:         img.ID,
		Caption:    img.Caption,
		Principal:  img.Principal,
		UploadedAt: img.UploadedAt,
		URL:        "/images/" + string(storage.KindDog) + "/" + img.ID,
	}
}

func toListingResponse(l Listing) listingResponse {
	images := make([]imageResponse, 0, len(l.Images))
	for _, img := range l.Images {
		images = append(images, toImageResponse(img))
	}
	return listingResponse{
		ID:             l.ID,
		OwnerUserID:    l.OwnerUserID,
		Name:           l.Name,
		Age:            l.Age,
		Sex:            l.Sex,
		Size:           l.Size,
		Breed:          l.Breed,
		Description:    l.Description,
		Location:       l.Location,
		RevisionState:  l.RevisionState,
		AdoptionState:  l.AdoptionState,
		ReviewerUserID: l.ReviewerUserID,
		ReviewedAt:     l.ReviewedAt,
		CreatedAt:      l.CreatedAt,
		UpdatedAt:      l.UpdatedAt,
		Version:        l.Version,
		Images:         images,
	}
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, ErrNotFound):
		http.Error(w, "listing not found", http.StatusNotFound)
	case errors.Is(err, ErrConflict):
		http.Error(w, "conflict, retry", http.StatusConflict)
	case errors.Is(err, ErrBadState):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// writeJSON está duplicado a propósito en los handlers de cada módulo
// (listings/requests/assets) para no crear helpers compartidos antes de
// tiempo.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
