// Package gallery manages the public image gallery.
package gallery

import (
	"strings"
	"time"

	"github.com/veresiye/defter/internal/shared"
)

// Image is a gallery entry backed by an uploaded file.
type Image struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	ImagePath   string    `json:"-"`
	ImageURL    string    `json:"image_url"`
	IsActive    bool      `json:"is_active"`
	Order       int       `json:"order"`
	CreatedBy   *int64    `json:"created_by_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Summary is the list projection of an image.
type Summary struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	ImageURL    string    `json:"image_url"`
	IsActive    bool      `json:"is_active"`
	Order       int       `json:"order"`
	CreatedAt   time.Time `json:"created_at"`
}

func (i Image) summary() Summary {
	return Summary{
		ID:          i.ID,
		Title:       i.Title,
		Description: i.Description,
		ImageURL:    i.ImageURL,
		IsActive:    i.IsActive,
		Order:       i.Order,
		CreatedAt:   i.CreatedAt,
	}
}

// ImageInput carries the writable metadata of an image.
type ImageInput struct {
	Title       string  `json:"title" validate:"required,max=200"`
	Description *string `json:"description"`
	IsActive    *bool   `json:"is_active"`
	Order       *int    `json:"order" validate:"omitempty,gte=0"`
}

func (in *ImageInput) normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = shared.TrimPtr(in.Description)
}

func (in ImageInput) apply(img *Image) {
	img.Title = in.Title
	img.Description = in.Description
	img.IsActive = true
	if in.IsActive != nil {
		img.IsActive = *in.IsActive
	}
	img.Order = 0
	if in.Order != nil {
		img.Order = *in.Order
	}
}

// ImagePatch carries a partial update; nil fields keep their value.
type ImagePatch struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	IsActive    *bool   `json:"is_active"`
	Order       *int    `json:"order"`
}

func (p ImagePatch) merge(img Image) ImageInput {
	in := ImageInput{
		Title:       img.Title,
		Description: img.Description,
		IsActive:    &img.IsActive,
		Order:       &img.Order,
	}
	if p.Title != nil {
		in.Title = *p.Title
	}
	if p.Description != nil {
		in.Description = p.Description
	}
	if p.IsActive != nil {
		in.IsActive = p.IsActive
	}
	if p.Order != nil {
		in.Order = p.Order
	}
	return in
}

// Input converts a patch into a full input, as used for creation and replacement.
func (p ImagePatch) Input() ImageInput {
	in := ImageInput{Description: p.Description, IsActive: p.IsActive, Order: p.Order}
	if p.Title != nil {
		in.Title = *p.Title
	}
	return in
}

// ListFilter narrows image listings.
type ListFilter struct {
	IsActive *bool
}
