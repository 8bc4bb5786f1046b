package requests

import (
	"context"
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

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Post("/listings/{listingID}/requests", createRequestHandler(svc))
	r.Get("/listings/{listingID}/requests", listByListingHandler(svc))

	r.Get("/me/requests", listMyRequestsHandler(svc))

	r.Get("/requests/{requestID}", getRequestHandler(svc))
	r.Patch("/requests/{requestID}", updateMessageHandler(svc))
	r.Delete("/requests/{requestID}", deleteRequestHandler(svc))

	r.Post("/requests/{requestID}/documents", addDocumentHandler(svc))

	// Revisión
	r.Post("/requests/{requestID}/review", markInReviewHandler(svc))
	r.Post("/requests/{requestID}/accept", acceptHandler(svc))
	r.Post("/requests/{requestID}/reject", rejectHandler(svc))
	r.Post("/requests/{requestID}/cancel", cancelHandler(svc))
	r.Post("/requests/{requestID}/revert", revertHandler(svc))
}

type documentResponse struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	UploadedAt  time.Time `json:"uploaded_at"`
	URL         string    `json:"url"`
}

type requestResponse struct {
	ID              string     `json:"id"`
	ListingID       string     `json:"listing_id"`
	RequesterUserID string     `json:"requester_user_id"`
	Status          Status     `json:"status"`
	Message         string     `json:"message"`
	SubmittedAt     time.Time  `json:"submitted_at"`
	RespondedAt     *time.Time `json:"responded_at,omitempty"`
	ReviewerUserID  string     `json:"reviewer_user_id,omitempty"`
	Version         int64      `json:"version"`

	Documents []documentResponse `json:"documents"`
}

// createRequestHandler recibe multipart/form-data: "message" y
// "document_type" como campos, el documento inicial en "file". El request
// nace siempre con al menos un documento.
func createRequestHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		act, ok := requestActor(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		doc, ok := readDocumentForm(w, r)
		if !ok {
			return
		}

		req, err := svc.Create(r.Context(), act, CreateInput{
			ListingID: chi.URLParam(r, "listingID"),
			Message:   r.FormValue("message"),
			Document:  doc,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toRequestResponse(req))
	}
}

func addDocumentHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		act, ok := requestActor(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		doc, ok := readDocumentForm(w, r)
		if !ok {
			return
		}

		d, err := svc.AddDocument(r.Context(), chi.URLParam(r, "requestID"), act, doc)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toDocumentResponse(d))
	}
}

func getRequestHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		act, ok := requestActor(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		req, err := svc.GetByID(r.Context(), chi.URLParam(r, "requestID"), act)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toRequestResponse(req))
	}
}

type updateMessageRequest struct {
	Message string `json:"message"`
}

func updateMessageHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		act, ok := requestActor(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var body updateMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		req, err := svc.UpdateMessage(r.Context(), chi.URLParam(r, "requestID"), act, body.Message)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toRequestResponse(req))
	}
}

func deleteRequestHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		act, ok := requestActor(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		if err := svc.Delete(r.Context(), chi.URLParam(r, "requestID"), act); err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func markInReviewHandler(svc *Service) http.HandlerFunc {
	return transitionHandler(svc.MarkInReview)
}

func acceptHandler(svc *Service) http.HandlerFunc {
	return transitionHandler(svc.Accept)
}

func rejectHandler(svc *Service) http.HandlerFunc {
	return transitionHandler(svc.Reject)
}

func cancelHandler(svc *Service) http.HandlerFunc {
	return transitionHandler(svc.Cancel)
}

func revertHandler(svc *Service) http.HandlerFunc {
	return transitionHandler(svc.Revert)
}

// transitionHandler factoriza las transiciones sin body: todas toman el id
// del path y el actor del contexto.
func transitionHandler(fn func(ctx context.Context, requestID string, act actor.Actor) (AdoptionRequest, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		act, ok := requestActor(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		req, err := fn(r.Context(), chi.URLParam(r, "requestID"), act)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toRequestResponse(req))
	}
}

func listByListingHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		act, ok := requestActor(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		items, err := svc.ListByListing(r.Context(), chi.URLParam(r, "listingID"), act)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		out := make([]requestResponse, 0, len(items))
		for _, req := range items {
			out = append(out, toRequestResponse(req))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func listMyRequestsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		act, ok := requestActor(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		items, err := svc.ListByRequester(r.Context(), act)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		out := make([]requestResponse, 0, len(items))
		for _, req := range items {
			out = append(out, toRequestResponse(req))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// readDocumentForm parsea el multipart y devuelve el DocumentInput. Escribe
// la respuesta de error y devuelve false si el form viene mal.
func readDocumentForm(w http.ResponseWriter, r *http.Request) (DocumentInput, bool) {
	if err := r.ParseMultipartForm(storage.MaxUploadSize); err != nil {
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return DocumentInput{}, false
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file is required", http.StatusBadRequest)
		return DocumentInput{}, false
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, storage.MaxUploadSize+1))
	if err != nil {
		http.Error(w, "failed to read file", http.StatusBadRequest)
		return DocumentInput{}, false
	}

	return DocumentInput{
		Type:        r.FormValue("document_type"),
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, true
}

func requestActor(r *http.Request) (actor.Actor, bool) {
	claims, ok := middleware.GetClaims(r.Context())
	if !ok || strings.TrimSpace(claims.UserID) == "" {
		return actor.Actor{}, false
	}
	return actor.New(claims.UserID, actor.Role(claims.Role)), true
}

func toDocumentResponse(d Document) documentResponse {
	return documentResponse{
		ID:          d.ID,
		Type:        d.Type,
		Filename:    d.Filename,
		ContentType: d.ContentType,
		Size:        d.Size,
		UploadedAt:  d.UploadedAt,
		URL:         "/images/" + string(storage.KindDocument) + "/" + d.ID,
	}
}

func toRequestResponse(req AdoptionRequest) requestResponse {
	docs := make([]documentResponse, 0, len(req.Documents))
	for _, d := range req.Documents {
		docs = append(docs, toDocumentResponse(d))
	}
	return requestResponse{
		ID:              req.ID,
		ListingID:       req.ListingID,
		RequesterUserID: req.RequesterUserID,
		Status:          req.Status,
		Message:         req.Message,
		SubmittedAt:     req.SubmittedAt,
		RespondedAt:     req.RespondedAt,
		ReviewerUserID:  req.ReviewerUserID,
		Version:         req.Version,
		Documents:       docs,
	}
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, ErrConflict):
		http.Error(w, "conflict, retry", http.StatusConflict)
	case errors.Is(err, ErrBadState):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
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
