package service

import (
	"context"
	"fmt"
	"time"

	"enablehub/internal/domain"

	"github.com/google/uuid"
)

type AssetService struct {
	versions VersionStore
	links    ShareLinkStore
}

func NewAssetService(versions VersionStore, links ShareLinkStore) *AssetService {
	return &AssetService{
		versions: versions,
		links:    links,
	}
}

func (s *AssetService) CreateAsset(ctx context.Context, title string, ownerID string, sourceType domain.SourceType) (*domain.Asset, error) {
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", domain.ErrBadRequest)
	}
	if sourceType == "" {
		sourceType = domain.SourceTypeUpload
	}

	asset := &domain.Asset{
		ID:         uuid.New(),
		Title:      title,
		OwnerID:    ownerID,
		SourceType: sourceType,
	}

	if err := s.versions.CreateAsset(ctx, asset); err != nil {
		return nil, fmt.Errorf("failed to create asset: %w", err)
	}

	return asset, nil
}

func (s *AssetService) GetAsset(ctx context.Context, id uuid.UUID) (*domain.Asset, error) {
	asset, err := s.versions.GetAsset(ctx, id)
	if err != nil {
		return nil, err
	}
	if asset.DeletedAt != nil {
		return nil, domain.ErrNotFound
	}
	return asset, nil
}

// CreateDraftVersion заводит новую черновую версию; номер присваивает хранилище.
// expireAt задает момент, после которого опубликованную версию протушит
// периодический обход ExpireDue.
func (s *AssetService) CreateDraftVersion(ctx context.Context, assetID uuid.UUID, actorID string, s3Key, mimeType string, sizeBytes int64, changeLog string, expireAt *time.Time) (*domain.AssetVersion, error) {
	if s3Key == "" {
		return nil, fmt.Errorf("%w: s3_key is required", domain.ErrBadRequest)
	}

	asset, err := s.GetAsset(ctx, assetID)
	if err != nil {
		return nil, err
	}
	if asset.OwnerID != actorID {
		return nil, fmt.Errorf("%w: only the owner can add versions", domain.ErrUnauthorized)
	}

	version := &domain.AssetVersion{
		ID:        uuid.New(),
		AssetID:   assetID,
		S3Key:     s3Key,
		MIMEType:  mimeType,
		SizeBytes: sizeBytes,
		ChangeLog: changeLog,
		ExpireAt:  expireAt,
	}

	if err := s.versions.CreateDraft(ctx, version); err != nil {
		return nil, err
	}

	return version, nil
}

func (s *AssetService) ListVersions(ctx context.Context, assetID uuid.UUID) ([]domain.AssetVersion, error) {
	if _, err := s.GetAsset(ctx, assetID); err != nil {
		return nil, err
	}
	return s.versions.ListVersions(ctx, assetID)
}

// DeleteAsset — мягкое удаление. Пока на ассет смотрит хоть одна неотозванная
// ссылка, удаление отклоняется.
func (s *AssetService) DeleteAsset(ctx context.Context, id uuid.UUID, actorID string) error {
	asset, err := s.GetAsset(ctx, id)
	if err != nil {
		return err
	}
	if asset.OwnerID != actorID {
		return fmt.Errorf("%w: only the owner can delete an asset", domain.ErrUnauthorized)
	}

	referenced, err := s.links.HasActiveLinksForAsset(ctx, id)
	if err != nil {
		return err
	}
	if referenced {
		return fmt.Errorf("%w: asset is referenced by non-revoked share links", domain.ErrConflict)
	}

	return s.versions.SoftDeleteAsset(ctx, id)
}
