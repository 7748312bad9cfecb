package domain

import (
	"github.com/google/uuid"
	"time"
)

type ShareLinkStatus string
type AccessMode string

const (
	ShareLinkStatusActive  ShareLinkStatus = "active"
	ShareLinkStatusRevoked ShareLinkStatus = "revoked"
	ShareLinkStatusExpired ShareLinkStatus = "expired"

	AccessModePublic      AccessMode = "public"
	AccessModeEmailVerify AccessMode = "emailVerify"
)

type ShareLink struct {
	ID              uuid.UUID       `json:"id" db:"id"`
	Token           string          `json:"token" db:"token"`
	AssetID         uuid.UUID       `json:"asset_id" db:"asset_id"`
	VersionID       *uuid.UUID      `json:"version_id,omitempty" db:"version_id"` // nil = каноническая ссылка
	Status          ShareLinkStatus `json:"status" db:"status"`
	ExpiresAt       *time.Time      `json:"expires_at,omitempty" db:"expires_at"`
	ExpireWithAsset bool            `json:"expire_with_asset" db:"expire_with_asset"`
	AccessMode      AccessMode      `json:"access_mode" db:"access_mode"`
	AllowDownload   bool            `json:"allow_download" db:"allow_download"`
	LastAccessAt    *time.Time      `json:"last_access_at,omitempty" db:"last_access_at"`
	CreatedBy       string          `json:"created_by" db:"created_by"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

// IsPinned сообщает, закреплена ли ссылка за конкретной версией
func (l *ShareLink) IsPinned() bool {
	return l.VersionID != nil
}

// EffectiveStatus вычисляет действующий статус ссылки на момент now без
// обращения к хранилищу. Запись expired в базу выполняется отдельным шагом.
func (l *ShareLink) EffectiveStatus(now time.Time) ShareLinkStatus {
	switch l.Status {
	case ShareLinkStatusRevoked:
		return ShareLinkStatusRevoked
	case ShareLinkStatusExpired:
		return ShareLinkStatusExpired
	}

	if l.ExpiresAt != nil && !now.Before(*l.ExpiresAt) {
		return ShareLinkStatusExpired
	}

	return ShareLinkStatusActive
}
