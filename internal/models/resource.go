package models

import (
	"time"

	"github.com/google/uuid"
)

type Resource struct {
	ID          uuid.UUID `json:"id"`
	UploaderID  uuid.UUID `json:"uploader_id"`
	Title       string    `json:"title"`
	Subject     string    `json:"subject"`
	Description string    `json:"description"`
	ObjectKey   string    `json:"-"`
	FileURL     string    `json:"file_url"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	CreatedAt   time.Time `json:"created_at"`
}

type Certificate struct {
	ID         uuid.UUID  `json:"id"`
	OwnerID    uuid.UUID  `json:"owner_id"`
	Title      string     `json:"title"`
	Issuer     string     `json:"issuer"`
	ObjectKey  string     `json:"-"`
	FileURL    string     `json:"file_url"`
	VerifiedBy *uuid.UUID `json:"verified_by,omitempty"`
	VerifiedAt *time.Time `json:"verified_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Upload describes a file received from a client before it is stored.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
}

type ResourceInput struct {
	Title       string `json:"title" validate:"required,max=200"`
	Subject     string `json:"subject" validate:"max=100"`
	Description string `json:"description" validate:"max=2000"`
}

type CertificateInput struct {
	Title  string `json:"title" validate:"required,max=200"`
	Issuer string `json:"issuer" validate:"max=200"`
}
