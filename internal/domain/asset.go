package domain

import (
	"github.com/google/uuid"
	"time"
)

type SourceType string

const (
	SourceTypeUpload    SourceType = "upload"
	SourceTypeDrive     SourceType = "drive"
	SourceTypeGenerated SourceType = "generated"
)

type Asset struct {
	ID                        uuid.UUID  `json:"id" db:"id"`
	Title                     string     `json:"title" db:"title"`
	OwnerID                   string     `json:"owner_id" db:"owner_id"`
	SourceType                SourceType `json:"source_type" db:"source_type"`
	CurrentPublishedVersionID *uuid.UUID `json:"current_published_version_id,omitempty" db:"current_published_version_id"`
	CreatedAt                 time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt                 time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt                 *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}
