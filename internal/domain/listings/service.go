package listings

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"dog-adoption-service/internal/domain/actor"
	"dog-adoption-service/internal/domain/assets"
	"dog-adoption-service/internal/platform/txn"
	"dog-adoption-service/internal/ports/storage"
)

// Service es el engine de moderación: es dueño del estado de revisión y
// de disponibilidad del listing, de su acople, y de las imágenes asociadas.
type Service struct {
	repo   Repository
	ledger assets.Ledger
	store  storage.Store
	tx     txn.Runner
	now    func() time.Time
}

func NewService(repo Repository, ledger assets.Ledger, store storage.Store, tx txn.Runner) *Service {
	return &Service{
		repo:   repo,
		ledger: ledger,
		store:  store,
		tx:     tx,
		now:    time.Now,
	}
}

// ImageRef referencia un asset ya subido (staged) al crear o editar.
type ImageRef struct {
	ID        string
	Caption   string
	Principal bool
}

type CreateInput struct {
	Name        string
	Age         int
	Sex         string
	Size        string
	Breed       string
	Description string
	Location    string
	Images      []ImageRef
}

// Create registra el listing en (pending, pending) y asocia sus imágenes,
// consumiendo las entradas del ledger en la misma transacción.
func (s *Service) Create(ctx context.Context, act actor.Actor, in CreateInput) (Listing, error) {
	if !act.Valid() {
		return Listing{}, ErrInvalidInput
	}
	name := strings.TrimSpace(in.Name)
	if name == "" || in.Age < 0 {
		return Listing{}, ErrInvalidInput
	}
	sex, err := parseSex(in.Sex)
	if err != nil {
		return Listing{}, err
	}
	size, err := parseSize(in.Size)
	if err != nil {
		return Listing{}, err
	}
	if err := validateImageSet(in.Images); err != nil {
		return Listing{}, err
	}

	now := s.now()
	l := Listing{
		ID:            uuid.NewString(),
		OwnerUserID:   act.UserID,
		Name:          name,
		Age:           in.Age,
		Sex:           sex,
		Size:          size,
		Breed:         strings.TrimSpace(in.Breed),
		Description:   strings.TrimSpace(in.Description),
		Location:      strings.TrimSpace(in.Location),
		RevisionState: RevisionPending,
		AdoptionState: AdoptionPending,
		CreatedAt:     now,
		UpdatedAt:     now,
		Version:       1,
	}

	for _, ref := range in.Images {
		staged, err := s.ledger.Get(ctx, ref.ID)
		if err != nil {
			return Listing{}, fmt.Errorf("image %s: %w", ref.ID, ErrNotFound)
		}
		if staged.Kind != storage.KindDog {
			return Listing{}, fmt.Errorf("image %s: %w", ref.ID, ErrInvalidInput)
		}
		l.Images = append(l.Images, Image{
			ID:         ref.ID,
			Caption:    strings.TrimSpace(ref.Caption),
			Principal:  ref.Principal,
			UploadedAt: staged.UploadedAt,
		})
	}

	err = s.tx.InTx(ctx, func(ctx context.Context, _ *txn.Hooks) error {
		if err := s.repo.Create(ctx, l); err != nil {
			return err
		}
		for _, img := range l.Images {
			if err := s.ledger.Remove(ctx, img.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Listing{}, err
	}
	return l, nil
}

// Approve requiere exactamente una imagen principal ya asociada.
// Si la disponibilidad estaba pending, se promueve a available.
func (s *Service) Approve(ctx context.Context, listingID string, reviewer actor.Actor) (Listing, error) {
	if !reviewer.Privileged() {
		return Listing{}, ErrForbidden
	}

	var out Listing
	err := s.tx.InTx(ctx, func(ctx context.Context, _ *txn.Hooks) error {
		l, err := s.repo.GetByID(ctx, listingID)
		if err != nil {
			return err
		}
		if _, ok := l.PrincipalImage(); !ok {
			return fmt.Errorf("%w: no principal image", ErrBadState)
		}

		now := s.now()
		l.RevisionState = RevisionApproved
		if l.AdoptionState == AdoptionPending {
			l.AdoptionState = AdoptionAvailable
		}
		l.ReviewerUserID = reviewer.UserID
		l.ReviewedAt = &now
		l.UpdatedAt = now

		if err := s.repo.Update(ctx, l); err != nil {
			return err
		}
		l.Version++
		out = l
		return nil
	})
	return out, err
}

// Reject marca la revisión como rejected. La disponibilidad no se toca:
// eso queda para un cambio explícito de adoption state.
func (s *Service) Reject(ctx context.Context, listingID string, reviewer actor.Actor) (Listing, error) {
	if !reviewer.Privileged() {
		return Listing{}, ErrForbidden
	}

	var out Listing
	err := s.tx.InTx(ctx, func(ctx context.Context, _ *txn.Hooks) error {
		l, err := s.repo.GetByID(ctx, listingID)
		if err != nil {
			return err
		}

		now := s.now()
		l.RevisionState = RevisionRejected
		l.ReviewerUserID = reviewer.UserID
		l.ReviewedAt = &now
		l.UpdatedAt = now

		if err := s.repo.Update(ctx, l); err != nil {
			return err
		}
		l.Version++
		out = l
		return nil
	})
	return out, err
}

// SetAdoptionState aplica un cambio explícito de disponibilidad.
// available exige revisión aprobada; pending y unavailable son cambios
// privilegiados y siempre estampan reviewer/timestamp. adopted solo se
// alcanza por el flujo de aceptación de requests.
func (s *Service) SetAdoptionState(ctx context.Context, listingID string, act actor.Actor, target AdoptionState) (Listing, error) {
	if !act.Valid() {
		return Listing{}, ErrInvalidInput
	}
	if target == AdoptionAdopted {
		return Listing{}, fmt.Errorf("%w: adopted is only set by request acceptance", ErrBadState)
	}
	if _, err := ParseAdoptionState(string(target)); err != nil {
		return Listing{}, ErrInvalidInput
	}

	var out Listing
	err := s.tx.InTx(ctx, func(ctx context.Context, _ *txn.Hooks) error {
		l, err := s.repo.GetByID(ctx, listingID)
		if err != nil {
			return err
		}

		now := s.now()
		switch target {
		case AdoptionAvailable:
			if l.OwnerUserID != act.UserID && !act.Privileged() {
				return ErrForbidden
			}
			if l.RevisionState != RevisionApproved {
				return fmt.Errorf("%w: listing not approved", ErrBadState)
			}
		case AdoptionPending, AdoptionUnavailable:
			if !act.Privileged() {
				return ErrForbidden
			}
			l.ReviewerUserID = act.UserID
			l.ReviewedAt = &now
		}

		l.AdoptionState = target
		l.UpdatedAt = now

		if err := s.repo.Update(ctx, l); err != nil {
			return err
		}
		l.Version++
		out = l
		return nil
	})
	return out, err
}

type UpdateInput struct {
	Name        *string
	Age         *int
	Sex         *string
	Size        *string
	Breed       *string
	Description *string
	Location    *string

	// Images es el set objetivo completo: el engine calcula el plan
	// toAdd/toRemove/toKeep contra el set actual. ImagesSet distingue
	// "no tocar imágenes" de "dejar el set vacío".
	Images    []ImageRef
	ImagesSet bool
}

// Update edita atributos y aplica el diff de imágenes. Los assets removidos
// se borran del storage recién después del commit.
func (s *Service) Update(ctx context.Context, listingID string, act actor.Actor, in UpdateInput) (Listing, error) {
	if !act.Valid() {
		return Listing{}, ErrInvalidInput
	}
	if in.ImagesSet {
		// A diferencia del alta, acá el set objetivo no puede quedar vacío:
		// un listing ya publicado no vuelve a pasar por aprobación.
		if len(in.Images) == 0 {
			return Listing{}, fmt.Errorf("%w: cannot remove every image", ErrBadState)
		}
		if err := validateImageSet(in.Images); err != nil {
			return Listing{}, err
		}
	}

	var out Listing
	err := s.tx.InTx(ctx, func(ctx context.Context, h *txn.Hooks) error {
		l, err := s.repo.GetByID(ctx, listingID)
		if err != nil {
			return err
		}
		if l.OwnerUserID != act.UserID && !act.Privileged() {
			return ErrForbidden
		}
		if !l.Editable() {
			return fmt.Errorf("%w: listing is %s", ErrBadState, l.AdoptionState)
		}

		if err := applyPatch(&l, in); err != nil {
			return err
		}

		if !in.ImagesSet {
			l.UpdatedAt = s.now()
			if err := s.repo.Update(ctx, l); err != nil {
				return err
			}
			out, err = s.repo.GetByID(ctx, listingID)
			return err
		}

		// Plan de diff contra el set actual.
		current := make(map[string]Image, len(l.Images))
		for _, img := range l.Images {
			current[img.ID] = img
		}
		target := make(map[string]ImageRef, len(in.Images))
		for _, ref := range in.Images {
			target[ref.ID] = ref
		}

		var toAdd []ImageRef
		for _, ref := range in.Images {
			if _, ok := current[ref.ID]; !ok {
				toAdd = append(toAdd, ref)
			}
		}
		var toRemove []string
		for _, img := range l.Images {
			if _, ok := target[img.ID]; !ok {
				toRemove = append(toRemove, img.ID)
			}
		}

		staged := make(map[string]assets.StagedAsset, len(toAdd))
		for _, ref := range toAdd {
			a, err := s.ledger.Get(ctx, ref.ID)
			if err != nil {
				return fmt.Errorf("image %s: %w", ref.ID, ErrNotFound)
			}
			if a.Kind != storage.KindDog {
				return fmt.Errorf("image %s: %w", ref.ID, ErrInvalidInput)
			}
			staged[ref.ID] = a
		}

		l.UpdatedAt = s.now()
		if err := s.repo.Update(ctx, l); err != nil {
			return err
		}

		if len(toRemove) > 0 {
			if err := s.repo.RemoveImages(ctx, listingID, toRemove); err != nil {
				return err
			}
		}
		for _, ref := range toAdd {
			img := Image{
				ID:         ref.ID,
				Caption:    strings.TrimSpace(ref.Caption),
				UploadedAt: staged[ref.ID].UploadedAt,
			}
			if err := s.repo.AddImage(ctx, listingID, img); err != nil {
				return err
			}
			if err := s.ledger.Remove(ctx, ref.ID); err != nil {
				return err
			}
		}

		// Reasignación de principal: limpiar-todo-y-marcar-una, nunca hay
		// dos principales visibles ni un instante.
		if err := s.repo.ClearPrincipal(ctx, listingID); err != nil {
			return err
		}
		for _, ref := range in.Images {
			if ref.Principal {
				if err := s.repo.SetPrincipal(ctx, listingID, ref.ID); err != nil {
					return err
				}
				break
			}
		}

		for _, id := range toRemove {
			id := id
			h.OnCommit(func(ctx context.Context) error {
				return s.store.Delete(ctx, storage.KindDog, id)
			})
		}

		out, err = s.repo.GetByID(ctx, listingID)
		return err
	})
	return out, err
}

// Delete borra el listing y agenda el borrado post-commit de todos sus
// assets de imagen.
func (s *Service) Delete(ctx context.Context, listingID string, act actor.Actor) error {
	if !act.Valid() {
		return ErrInvalidInput
	}

	return s.tx.InTx(ctx, func(ctx context.Context, h *txn.Hooks) error {
		l, err := s.repo.GetByID(ctx, listingID)
		if err != nil {
			return err
		}
		if l.OwnerUserID != act.UserID && !act.Privileged() {
			return ErrForbidden
		}
		if !l.Editable() {
			return fmt.Errorf("%w: listing is %s", ErrBadState, l.AdoptionState)
		}

		if err := s.repo.Delete(ctx, listingID); err != nil {
			return err
		}

		for _, img := range l.Images {
			id := img.ID
			h.OnCommit(func(ctx context.Context) error {
				return s.store.Delete(ctx, storage.KindDog, id)
			})
		}
		return nil
	})
}

type AddImageInput struct {
	Filename    string
	ContentType string
	Data        []byte
	Caption     string
	Principal   bool
}

// AddImage sube el binario primero (si la subida falla no se persiste nada)
// y recién entonces inserta la fila, revalidando el tope bajo la misma
// transacción. Si la transacción aborta, un hook de rollback borra el asset.
func (s *Service) AddImage(ctx context.Context, listingID string, act actor.Actor, in AddImageInput) (Image, error) {
	if !act.Valid() {
		return Image{}, ErrInvalidInput
	}
	if err := storage.ValidateUpload(storage.KindDog, in.ContentType, int64(len(in.Data))); err != nil {
		return Image{}, ErrInvalidInput
	}

	// Chequeo rápido de existencia y permisos antes del side effect externo.
	l, err := s.repo.GetByID(ctx, listingID)
	if err != nil {
		return Image{}, err
	}
	if l.OwnerUserID != act.UserID && !act.Privileged() {
		return Image{}, ErrForbidden
	}
	if !l.Editable() {
		return Image{}, fmt.Errorf("%w: listing is %s", ErrBadState, l.AdoptionState)
	}

	id := uuid.NewString()
	if err := s.store.Upload(ctx, storage.KindDog, id, bytes.NewReader(in.Data), in.ContentType); err != nil {
		return Image{}, err
	}

	img := Image{
		ID:         id,
		Caption:    strings.TrimSpace(in.Caption),
		Principal:  in.Principal,
		UploadedAt: s.now(),
	}

	err = s.tx.InTx(ctx, func(ctx context.Context, h *txn.Hooks) error {
		h.OnRollback(func(ctx context.Context) error {
			return s.store.Delete(ctx, storage.KindDog, id)
		})

		// El conteo se revalida contra el snapshot transaccional.
		l, err := s.repo.GetByID(ctx, listingID)
		if err != nil {
			return err
		}
		if !l.Editable() {
			return fmt.Errorf("%w: listing is %s", ErrBadState, l.AdoptionState)
		}
		if len(l.Images) >= MaxImages {
			return fmt.Errorf("%w: listing already has %d images", ErrBadState, MaxImages)
		}

		if in.Principal {
			if err := s.repo.ClearPrincipal(ctx, listingID); err != nil {
				return err
			}
		}
		return s.repo.AddImage(ctx, listingID, img)
	})
	if err != nil {
		return Image{}, err
	}
	return img, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (Listing, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Listing{}, ErrInvalidInput
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListPublic(ctx context.Context) ([]Listing, error) {
	return s.repo.ListPublic(ctx)
}

func (s *Service) ListByOwner(ctx context.Context, act actor.Actor) ([]Listing, error) {
	if !act.Valid() {
		return nil, ErrInvalidInput
	}
	return s.repo.ListByOwner(ctx, act.UserID)
}

// validateImageSet aplica tope y unicidad de principal sobre un set objetivo.
// Un set vacío es válido: el gate duro de principal recién corre en Approve.
func validateImageSet(refs []ImageRef) error {
	if len(refs) > MaxImages {
		return fmt.Errorf("%w: at most %d images", ErrBadState, MaxImages)
	}
	if len(refs) == 0 {
		return nil
	}
	seen := map[string]struct{}{}
	principals := 0
	for _, ref := range refs {
		if strings.TrimSpace(ref.ID) == "" {
			return ErrInvalidInput
		}
		if _, dup := seen[ref.ID]; dup {
			return fmt.Errorf("%w: duplicate image id", ErrInvalidInput)
		}
		seen[ref.ID] = struct{}{}
		if ref.Principal {
			principals++
		}
	}
	if principals != 1 {
		return fmt.Errorf("%w: exactly one principal image required", ErrBadState)
	}
	return nil
}

func applyPatch(l *Listing, in UpdateInput) error {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return ErrInvalidInput
		}
		l.Name = name
	}
	if in.Age != nil {
		if *in.Age < 0 {
			return ErrInvalidInput
		}
		l.Age = *in.Age
	}
	if in.Sex != nil {
		sex, err := parseSex(*in.Sex)
		if err != nil {
			return err
		}
		l.Sex = sex
	}
	if in.Size != nil {
		size, err := parseSize(*in.Size)
		if err != nil {
			return err
		}
		l.Size = size
	}
	if in.Breed != nil {
		l.Breed = strings.TrimSpace(*in.Breed)
	}
	if in.Description != nil {
		l.Description = strings.TrimSpace(*in.Description)
	}
	if in.Location != nil {
		l.Location = strings.TrimSpace(*in.Location)
	}
	return nil
}

func parseSex(s string) (Sex, error) {
	switch Sex(strings.TrimSpace(s)) {
	case SexMale, SexFemale, SexUnknown:
		return Sex(strings.TrimSpace(s)), nil
	case "":
		return SexUnknown, nil
	}
	return "", ErrInvalidInput
}

func parseSize(s string) (Size, error) {
	switch Size(strings.TrimSpace(s)) {
	case SizeSmall, SizeMedium, SizeLarge:
		return Size(strings.TrimSpace(s)), nil
	case "":
		return SizeMedium, nil
	}
	return "", ErrInvalidInput
}
