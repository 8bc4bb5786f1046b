package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"dog-adoption-service/internal/domain/requests"
)

type RequestsRepo struct {
	baseRepo
}

func NewRequestsRepo(db *sql.DB) *RequestsRepo {
	return &RequestsRepo{baseRepo{db: db}}
}

func (r *RequestsRepo) Create(ctx context.Context, req requests.AdoptionRequest) error {
	_, err := r.q(ctx).ExecContext(ctx, `
		INSERT INTO adoption_requests (
			id, listing_id, requester_user_id,
			status, message,
			submitted_at, responded_at, reviewer_user_id,
			version
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`,
		req.ID,
		req.ListingID,
		req.RequesterUserID,
		string(req.Status),
		req.Message,
		req.SubmittedAt,
		toNullTime(req.RespondedAt),
		req.ReviewerUserID,
		req.Version,
	)
	return err
}

func (r *RequestsRepo) GetByID(ctx context.Context, id string) (requests.AdoptionRequest, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return requests.AdoptionRequest{}, requests.ErrNotFound
	}

	row := r.q(ctx).QueryRowContext(ctx, `
		SELECT
			id, listing_id, requester_user_id,
			status, message,
			submitted_at, responded_at, reviewer_user_id,
			version
		FROM adoption_requests
		WHERE id = $1
	`, id)

	req, err := scanRequest(row)
	if err != nil {
		return requests.AdoptionRequest{}, err
	}

	docs, err := r.loadDocuments(ctx, req.ID)
	if err != nil {
		return requests.AdoptionRequest{}, err
	}
	req.Documents = docs
	return req, nil
}

// Update escribe los campos del request guardado por versión; no toca
// documentos.
func (r *RequestsRepo) Update(ctx context.Context, req requests.AdoptionRequest) error {
	res, err := r.q(ctx).ExecContext(ctx, `
		UPDATE adoption_requests
		SET
			status = $2,
			message = $3,
			responded_at = $4,
			reviewer_user_id = $5,
			version = version + 1
		WHERE id = $1 AND version = $6
	`,
		req.ID,
		string(req.Status),
		req.Message,
		toNullTime(req.RespondedAt),
		req.ReviewerUserID,
		req.Version,
	)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		row := r.q(ctx).QueryRowContext(ctx, `SELECT 1 FROM adoption_requests WHERE id = $1`, req.ID)
		var one int
		if scanErr := row.Scan(&one); scanErr != nil {
			if errors.Is(scanErr, sql.ErrNoRows) {
				return requests.ErrNotFound
			}
			return scanErr
		}
		return requests.ErrConflict
	}
	return nil
}

func (r *RequestsRepo) Delete(ctx context.Context, id string) error {
	res, err := r.q(ctx).ExecContext(ctx, `DELETE FROM adoption_requests WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return requests.ErrNotFound
	}
	return nil
}

func (r *RequestsRepo) ListByListing(ctx context.Context, listingID string) ([]requests.AdoptionRequest, error) {
	return r.list(ctx, `
		SELECT
			id, listing_id, requester_user_id,
			status, message,
			submitted_at, responded_at, reviewer_user_id,
			version
		FROM adoption_requests
		WHERE listing_id = $1
		ORDER BY submitted_at ASC
	`, listingID)
}

func (r *RequestsRepo) ListByRequester(ctx context.Context, requesterUserID string) ([]requests.AdoptionRequest, error) {
	return r.list(ctx, `
		SELECT
			id, listing_id, requester_user_id,
			status, message,
			submitted_at, responded_at, reviewer_user_id,
			version
		FROM adoption_requests
		WHERE requester_user_id = $1
		ORDER BY submitted_at ASC
	`, requesterUserID)
}

func (r *RequestsRepo) AddDocument(ctx context.Context, requestID string, doc requests.Document) error {
	_, err := r.q(ctx).ExecContext(ctx, `
		INSERT INTO request_documents (id, request_id, doc_type, filename, content_type, size_bytes, uploaded_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`,
		doc.ID,
		requestID,
		doc.Type,
		doc.Filename,
		doc.ContentType,
		doc.Size,
		doc.UploadedAt,
	)
	return err
}

func (r *RequestsRepo) list(ctx context.Context, query string, args ...any) ([]requests.AdoptionRequest, error) {
	rows, err := r.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]requests.AdoptionRequest, 0)
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		docs, err := r.loadDocuments(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Documents = docs
	}
	return out, nil
}

func (r *RequestsRepo) loadDocuments(ctx context.Context, requestID string) ([]requests.Document, error) {
	rows, err := r.q(ctx).QueryContext(ctx, `
		SELECT id, doc_type, filename, content_type, size_bytes, uploaded_at
		FROM request_documents
		WHERE request_id = $1
		ORDER BY uploaded_at ASC, id ASC
	`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []requests.Document
	for rows.Next() {
		var d requests.Document
		if err := rows.Scan(&d.ID, &d.Type, &d.Filename, &d.ContentType, &d.Size, &d.UploadedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func scanRequest(row rowScanner) (requests.AdoptionRequest, error) {
	var req requests.AdoptionRequest
	var status string
	var respondedAt sql.NullTime

	if err := row.Scan(
		&req.ID,
		&req.ListingID,
		&req.RequesterUserID,
		&status,
		&req.Message,
		&req.SubmittedAt,
		&respondedAt,
		&req.ReviewerUserID,
		&req.Version,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return requests.AdoptionRequest{}, requests.ErrNotFound
		}
		return requests.AdoptionRequest{}, err
	}

	st, err := requests.ParseStatus(status)
	if err != nil {
		return requests.AdoptionRequest{}, err
	}
	req.Status = st

	if respondedAt.Valid {
		t := respondedAt.Time
		req.RespondedAt = &t
	}
	return req, nil
}
