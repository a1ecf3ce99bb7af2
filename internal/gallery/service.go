package gallery

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/veresiye/defter/internal/platform/httpx"
	"github.com/veresiye/defter/internal/shared"
)

// ErrImageNotFound is returned when an image id does not exist or is hidden from the caller.
var ErrImageNotFound = fmt.Errorf("%w: gallery image not found", httpx.ErrNotFound)

// FileStore stores uploaded image files.
type FileStore interface {
	Save(src io.Reader) (string, error)
	Remove(rel string) error
	URL(rel string) string
}

// Service manages gallery images and their files.
type Service struct {
	repo      Repository
	files     FileStore
	validator *shared.Validator
}

// NewService constructs the gallery service.
func NewService(repo Repository, files FileStore) *Service {
	return &Service{repo: repo, files: files, validator: shared.NewValidator()}
}

// Create stores the upload and inserts the image. file is required.
func (s *Service) Create(ctx context.Context, in ImageInput, file io.Reader, actor *int64) (Image, error) {
	in.normalize()
	if err := s.validator.Struct(in); err != nil {
		return Image{}, err
	}
	if file == nil {
		return Image{}, ErrImageRequired
	}
	rel, err := s.files.Save(file)
	if err != nil {
		return Image{}, err
	}
	img := Image{ImagePath: rel, CreatedBy: actor}
	in.apply(&img)
	created, err := s.repo.Create(ctx, img)
	if err != nil {
		_ = s.files.Remove(rel)
		return Image{}, fmt.Errorf("create image: %w", err)
	}
	return s.withURL(created), nil
}

// Get returns an image. Inactive images are visible only when includeInactive is set.
func (s *Service) Get(ctx context.Context, id int64, includeInactive bool) (Image, error) {
	img, err := s.repo.Get(ctx, id)
	if err != nil {
		return Image{}, translate("get image", err)
	}
	if !img.IsActive && !includeInactive {
		return Image{}, ErrImageNotFound
	}
	return s.withURL(img), nil
}

// List returns image summaries. Without includeInactive only active images are listed.
func (s *Service) List(ctx context.Context, filter ListFilter, includeInactive bool) ([]Summary, error) {
	if !includeInactive {
		active := true
		filter.IsActive = &active
	}
	images, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	out := make([]Summary, 0, len(images))
	for _, img := range images {
		out = append(out, s.withURL(img).summary())
	}
	return out, nil
}

// Update replaces the metadata of an image. A non-nil file replaces the stored image.
func (s *Service) Update(ctx context.Context, id int64, in ImageInput, file io.Reader) (Image, error) {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return Image{}, translate("update image", err)
	}
	return s.save(ctx, current, in, file)
}

// Patch updates only the supplied fields. A non-nil file replaces the stored image.
func (s *Service) Patch(ctx context.Context, id int64, patch ImagePatch, file io.Reader) (Image, error) {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return Image{}, translate("patch image", err)
	}
	return s.save(ctx, current, patch.merge(current), file)
}

func (s *Service) save(ctx context.Context, current Image, in ImageInput, file io.Reader) (Image, error) {
	in.normalize()
	if err := s.validator.Struct(in); err != nil {
		return Image{}, err
	}
	next := current
	in.apply(&next)
	oldPath := current.ImagePath
	if file != nil {
		rel, err := s.files.Save(file)
		if err != nil {
			return Image{}, err
		}
		next.ImagePath = rel
	}
	updated, err := s.repo.Update(ctx, next)
	if err != nil {
		if next.ImagePath != oldPath {
			_ = s.files.Remove(next.ImagePath)
		}
		return Image{}, translate("update image", err)
	}
	if updated.ImagePath != oldPath {
		_ = s.files.Remove(oldPath)
	}
	return s.withURL(updated), nil
}

// Delete removes the image row and its file.
func (s *Service) Delete(ctx context.Context, id int64) error {
	img, err := s.repo.Delete(ctx, id)
	if err != nil {
		return translate("delete image", err)
	}
	_ = s.files.Remove(img.ImagePath)
	return nil
}

func (s *Service) withURL(img Image) Image {
	img.ImageURL = s.files.URL(img.ImagePath)
	return img
}

func translate(op string, err error) error {
	if errors.Is(err, ErrNotFound) {
		return ErrImageNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
