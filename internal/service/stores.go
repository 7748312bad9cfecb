package service

import (
	"context"
	"time"

	"enablehub/internal/domain"

	"github.com/google/uuid"
)

// VersionStore — абстракция хранилища над Asset и AssetVersion.
// Условные записи (ожидаемый статус / ожидаемый указатель) возвращают
// domain.ErrConflict при проигрыше гонки.
type VersionStore interface {
	CreateAsset(ctx context.Context, asset *domain.Asset) error
	GetAsset(ctx context.Context, id uuid.UUID) (*domain.Asset, error)
	SoftDeleteAsset(ctx context.Context, id uuid.UUID) error

	// CreateDraft присваивает version_number = max(существующих) + 1 и статус draft.
	CreateDraft(ctx context.Context, version *domain.AssetVersion) error
	GetVersion(ctx context.Context, id uuid.UUID) (*domain.AssetVersion, error)
	ListVersions(ctx context.Context, assetID uuid.UUID) ([]domain.AssetVersion, error)

	// SetVersionStatus — условный перевод статуса: WHERE status = from.
	SetVersionStatus(ctx context.Context, id uuid.UUID, from, to domain.VersionStatus) error
	ScheduleVersion(ctx context.Context, id uuid.UUID, publishAt time.Time, from domain.VersionStatus) error

	// PromoteVersion публикует версию, переводит прежнюю текущую в deprecated
	// и перенацеливает current_published_version_id. Выполняется атомарно:
	// внешний наблюдатель не видит ассет, указывающий на неопубликованную версию.
	PromoteVersion(ctx context.Context, versionID uuid.UUID, from domain.VersionStatus, changeLog string) error

	HasNewerPublished(ctx context.Context, assetID uuid.UUID, versionNumber int) (bool, error)
	ListDueScheduled(ctx context.Context, now time.Time) ([]domain.AssetVersion, error)
	ListDueExpiring(ctx context.Context, now time.Time) ([]domain.AssetVersion, error)
}

// ShareLinkStore — абстракция хранилища над ShareLink, ShareRecipient и ShareEvent.
type ShareLinkStore interface {
	CreateShareLink(ctx context.Context, link *domain.ShareLink) error
	GetShareLinkByToken(ctx context.Context, token string) (*domain.ShareLink, error)
	GetShareLink(ctx context.Context, id uuid.UUID) (*domain.ShareLink, error)

	// MarkShareLinkExpired — ленивое протухание: условно на status = active, идемпотентно.
	MarkShareLinkExpired(ctx context.Context, id uuid.UUID) error
	RevokeShareLink(ctx context.Context, id uuid.UUID, ownerID string) error
	UpdateLastAccess(ctx context.Context, id uuid.UUID, at time.Time) error
	HasActiveLinksForAsset(ctx context.Context, assetID uuid.UUID) (bool, error)

	AddRecipient(ctx context.Context, recipient *domain.ShareRecipient) error
	GetRecipient(ctx context.Context, shareLinkID uuid.UUID, email string) (*domain.ShareRecipient, error)
	MarkRecipientVerified(ctx context.Context, shareLinkID uuid.UUID, email string, at time.Time) error

	AppendEvent(ctx context.Context, event *domain.ShareEvent) error
	ListEvents(ctx context.Context, shareLinkID uuid.UUID, limit int) ([]domain.ShareEvent, error)
}
