// domain/asset_version.go
package domain

import (
	"github.com/google/uuid"
	"time"
)

type VersionStatus string

const (
	VersionStatusDraft      VersionStatus = "draft"
	VersionStatusScheduled  VersionStatus = "scheduled"
	VersionStatusPublished  VersionStatus = "published"
	VersionStatusDeprecated VersionStatus = "deprecated"
	VersionStatusExpired    VersionStatus = "expired"
	VersionStatusArchived   VersionStatus = "archived"
)

type AssetVersion struct {
	ID            uuid.UUID     `json:"id" db:"id"`
	AssetID       uuid.UUID     `json:"asset_id" db:"asset_id"`
	VersionNumber int           `json:"version_number" db:"version_number"`
	Status        VersionStatus `json:"status" db:"status"`
	PublishAt     *time.Time    `json:"publish_at,omitempty" db:"publish_at"`
	ExpireAt      *time.Time    `json:"expire_at,omitempty" db:"expire_at"`
	ChangeLog     string        `json:"change_log" db:"change_log"`
	S3Key         string        `json:"s3_key" db:"s3_key"`
	MIMEType      string        `json:"mime_type" db:"mime_type"`
	SizeBytes     int64         `json:"size_bytes" db:"size_bytes"`
	CreatedAt     time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at" db:"updated_at"`
}
