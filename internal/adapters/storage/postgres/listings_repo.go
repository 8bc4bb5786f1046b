package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"dog-adoption-service/internal/domain/listings"
)

type ListingsRepo struct {
	baseRepo
}

func NewListingsRepo(db *sql.DB) *ListingsRepo {
	return &ListingsRepo{baseRepo{db: db}}
}

func (r *ListingsRepo) Create(ctx context.Context, l listings.Listing) error {
	q := r.q(ctx)
	_, err := q.ExecContext(ctx, `
		INSERT INTO listings (
			id, owner_user_id,
			name, age, sex, size, breed, description, location,
			revision_state, adoption_state,
			reviewer_user_id, reviewed_at,
			created_at, updated_at, version
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
	`,
		l.ID,
		l.OwnerUserID,
		l.Name,
		l.Age,
		string(l.Sex),
		string(l.Size),
		l.Breed,
		l.Description,
		l.Location,
		string(l.RevisionState),
		string(l.AdoptionState),
		l.ReviewerUserID,
		toNullTime(l.ReviewedAt),
		l.CreatedAt,
		l.UpdatedAt,
		l.Version,
	)
	if err != nil {
		return err
	}

	for _, img := range l.Images {
		if err := r.AddImage(ctx, l.ID, img); err != nil {
			return err
		}
	}
	return nil
}

func (r *ListingsRepo) GetByID(ctx context.Context, id string) (listings.Listing, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return listings.Listing{}, listings.ErrNotFound
	}

	row := r.q(ctx).QueryRowContext(ctx, `
		SELECT
			id, owner_user_id,
			name, age, sex, size, breed, description, location,
			revision_state, adoption_state,
			reviewer_user_id, reviewed_at,
			created_at, updated_at, version
		FROM listings
		WHERE id = $1
	`, id)

	l, err := scanListing(row)
	if err != nil {
		return listings.Listing{}, err
	}

	imgs, err := r.loadImages(ctx, []string{l.ID})
	if err != nil {
		return listings.Listing{}, err
	}
	l.Images = imgs[l.ID]
	return l, nil
}

// Update escribe los campos del listing guardado por versión; no toca
// imágenes. Con versión vieja responde ErrConflict.
func (r *ListingsRepo) Update(ctx context.Context, l listings.Listing) error {
	res, err := r.q(ctx).ExecContext(ctx, `
		UPDATE listings
		SET
			name = $2,
			age = $3,
			sex = $4,
			size = $5,
			breed = $6,
			description = $7,
			location = $8,
			revision_state = $9,
			adoption_state = $10,
			reviewer_user_id = $11,
			reviewed_at = $12,
			updated_at = $13,
			version = version + 1
		WHERE id = $1 AND version = $14
	`,
		l.ID,
		l.Name,
		l.Age,
		string(l.Sex),
		string(l.Size),
		l.Breed,
		l.Description,
		l.Location,
		string(l.RevisionState),
		string(l.AdoptionState),
		l.ReviewerUserID,
		toNullTime(l.ReviewedAt),
		l.UpdatedAt,
		l.Version,
	)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		// Distinguir fila ausente de versión vieja.
		row := r.q(ctx).QueryRowContext(ctx, `SELECT 1 FROM listings WHERE id = $1`, l.ID)
		var one int
		if scanErr := row.Scan(&one); scanErr != nil {
			if errors.Is(scanErr, sql.ErrNoRows) {
				return listings.ErrNotFound
			}
			return scanErr
		}
		return listings.ErrConflict
	}
	return nil
}

func (r *ListingsRepo) Delete(ctx context.Context, id string) error {
	res, err := r.q(ctx).ExecContext(ctx, `DELETE FROM listings WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return listings.ErrNotFound
	}
	return nil
}

func (r *ListingsRepo) ListByOwner(ctx context.Context, ownerUserID string) ([]listings.Listing, error) {
	return r.list(ctx, `
		SELECT
			id, owner_user_id,
			name, age, sex, size, breed, description, location,
			revision_state, adoption_state,
			reviewer_user_id, reviewed_at,
			created_at, updated_at, version
		FROM listings
		WHERE owner_user_id = $1
		ORDER BY created_at ASC
	`, ownerUserID)
}

func (r *ListingsRepo) ListPublic(ctx context.Context) ([]listings.Listing, error) {
	return r.list(ctx, `
		SELECT
			id, owner_user_id,
			name, age, sex, size, breed, description, location,
			revision_state, adoption_state,
			reviewer_user_id, reviewed_at,
			created_at, updated_at, version
		FROM listings
		WHERE revision_state = 'approved' AND adoption_state = 'available'
		ORDER BY created_at ASC
	`)
}

func (r *ListingsRepo) AddImage(ctx context.Context, listingID string, img listings.Image) error {
	_, err := r.q(ctx).ExecContext(ctx, `
		INSERT INTO listing_images (id, listing_id, caption, principal, uploaded_at)
		VALUES ($1,$2,$3,$4,$5)
	`, img.ID, listingID, img.Caption, img.Principal, img.UploadedAt)
	return err
}

func (r *ListingsRepo) RemoveImages(ctx context.Context, listingID string, imageIDs []string) error {
	if len(imageIDs) == 0 {
		return nil
	}
	q := r.q(ctx)
	for _, id := range imageIDs {
		if _, err := q.ExecContext(ctx, `
			DELETE FROM listing_images WHERE listing_id = $1 AND id = $2
		`, listingID, id); err != nil {
			return err
		}
	}
	return nil
}

func (r *ListingsRepo) ClearPrincipal(ctx context.Context, listingID string) error {
	_, err := r.q(ctx).ExecContext(ctx, `
		UPDATE listing_images SET principal = FALSE WHERE listing_id = $1
	`, listingID)
	return err
}

func (r *ListingsRepo) SetPrincipal(ctx context.Context, listingID, imageID string) error {
	res, err := r.q(ctx).ExecContext(ctx, `
		UPDATE listing_images SET principal = TRUE
		WHERE listing_id = $1 AND id = $2
	`, listingID, imageID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return listings.ErrNotFound
	}
	return nil
}

func (r *ListingsRepo) list(ctx context.Context, query string, args ...any) ([]listings.Listing, error) {
	rows, err := r.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]listings.Listing, 0)
	ids := make([]string, 0)
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
		ids = append(ids, l.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	imgs, err := r.loadImages(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Images = imgs[out[i].ID]
	}
	return out, nil
}

func (r *ListingsRepo) loadImages(ctx context.Context, listingIDs []string) (map[string][]listings.Image, error) {
	out := make(map[string][]listings.Image, len(listingIDs))
	if len(listingIDs) == 0 {
		return out, nil
	}

	q := r.q(ctx)
	for _, listingID := range listingIDs {
		rows, err := q.QueryContext(ctx, `
			SELECT id, caption, principal, uploaded_at
			FROM listing_images
			WHERE listing_id = $1
			ORDER BY uploaded_at ASC, id ASC
		`, listingID)
		if err != nil {
			return nil, err
		}

		for rows.Next() {
			var img listings.Image
			if err := rows.Scan(&img.ID, &img.Caption, &img.Principal, &img.UploadedAt); err != nil {
				rows.Close()
				return nil, err
			}
			out[listingID] = append(out[listingID], img)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanListing(row rowScanner) (listings.Listing, error) {
	var l listings.Listing
	var sex, size, revision, adoption string
	var reviewedAt sql.NullTime

	if err := row.Scan(
		&l.ID,
		&l.OwnerUserID,
		&l.Name,
		&l.Age,
		&sex,
		&size,
		&l.Breed,
		&l.Description,
		&l.Location,
		&revision,
		&adoption,
		&l.ReviewerUserID,
		&reviewedAt,
		&l.CreatedAt,
		&l.UpdatedAt,
		&l.Version,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return listings.Listing{}, listings.ErrNotFound
		}
		return listings.Listing{}, err
	}

	rs, err := listings.ParseRevisionState(revision)
	if err != nil {
		return listings.Listing{}, err
	}
	as, err := listings.ParseAdoptionState(adoption)
	if err != nil {
		return listings.Listing{}, err
	}
	l.RevisionState = rs
	l.AdoptionState = as
	l.Sex = listings.Sex(sex)
	l.Size = listings.Size(size)

	if reviewedAt.Valid {
		t := reviewedAt.Time
		l.ReviewedAt = &t
	}
	return l, nil
}

func toNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
