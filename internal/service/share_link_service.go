package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"enablehub/internal/domain"

	"github.com/google/uuid"
)

type ShareLinkService struct {
	links    ShareLinkStore
	versions VersionStore
}

func NewShareLinkService(links ShareLinkStore, versions VersionStore) *ShareLinkService {
	return &ShareLinkService{
		links:    links,
		versions: versions,
	}
}

// Resolution — результат разбора публичного токена
type Resolution struct {
	ShareLink             *domain.ShareLink    `json:"share_link"`
	Asset                 *domain.Asset        `json:"asset"`
	Version               *domain.AssetVersion `json:"version"`
	NewerVersionAvailable bool                 `json:"newer_version_available"`
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

type CreateShareLinkInput struct {
	AssetID         uuid.UUID
	VersionID       *uuid.UUID
	ExpiresIn       *time.Duration
	ExpireWithAsset bool
	AccessMode      domain.AccessMode
	AllowDownload   bool
	CreatedBy       string
}

func (s *ShareLinkService) CreateShareLink(ctx context.Context, input CreateShareLinkInput) (*domain.ShareLink, error) {
	asset, err := s.versions.GetAsset(ctx, input.AssetID)
	if err != nil {
		return nil, err
	}
	if asset.DeletedAt != nil {
		return nil, domain.ErrNotFound
	}
	if asset.OwnerID != input.CreatedBy {
		return nil, fmt.Errorf("%w: only the owner can share an asset", domain.ErrUnauthorized)
	}

	// Закрепленная ссылка должна указывать на версию этого же ассета
	if input.VersionID != nil {
		version, err := s.versions.GetVersion(ctx, *input.VersionID)
		if err != nil {
			return nil, err
		}
		if version.AssetID != input.AssetID {
			return nil, fmt.Errorf("%w: version does not belong to asset", domain.ErrBadRequest)
		}
	}

	switch input.AccessMode {
	case domain.AccessModePublic, domain.AccessModeEmailVerify:
	case "":
		input.AccessMode = domain.AccessModePublic
	default:
		return nil, fmt.Errorf("%w: unknown access_mode %q", domain.ErrBadRequest, input.AccessMode)
	}

	token, err := generateToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	var expiresAt *time.Time
	if input.ExpiresIn != nil {
		t := time.Now().Add(*input.ExpiresIn)
		expiresAt = &t
	}

	link := &domain.ShareLink{
		ID:              uuid.New(),
		Token:           token,
		AssetID:         input.AssetID,
		VersionID:       input.VersionID,
		Status:          domain.ShareLinkStatusActive,
		ExpiresAt:       expiresAt,
		ExpireWithAsset: input.ExpireWithAsset,
		AccessMode:      input.AccessMode,
		AllowDownload:   input.AllowDownload,
		CreatedBy:       input.CreatedBy,
	}

	if err := s.links.CreateShareLink(ctx, link); err != nil {
		return nil, fmt.Errorf("failed to create share link: %w", err)
	}

	return link, nil
}

// Resolve разбирает публичный токен в действующую тройку ссылка/ассет/версия.
// Каждый шаг обрывает разбор своей ошибкой; протухание по дедлайну
// материализуется в хранилище до того, как ошибка уйдет наружу, чтобы повтор
// запроса увидел expired, а не заново сверялся с часами.
func (s *ShareLinkService) Resolve(ctx context.Context, token string) (*Resolution, error) {
	link, err := s.links.GetShareLinkByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	switch link.EffectiveStatus(now) {
	case domain.ShareLinkStatusRevoked:
		return nil, domain.ErrRevoked
	case domain.ShareLinkStatusExpired:
		if link.Status == domain.ShareLinkStatusActive {
			// Ленивое протухание: запись обязана завершиться до ответа
			if err := s.links.MarkShareLinkExpired(ctx, link.ID); err != nil {
				return nil, fmt.Errorf("failed to expire share link: %w", err)
			}
		}
		return nil, domain.ErrExpired
	}

	asset, err := s.versions.GetAsset(ctx, link.AssetID)
	if err != nil {
		return nil, err
	}
	if asset.DeletedAt != nil {
		return nil, domain.ErrNotFound
	}

	// Закрепленная ссылка всегда смотрит на свою версию, каноническая —
	// на текущую опубликованную
	var version *domain.AssetVersion
	if link.IsPinned() {
		version, err = s.versions.GetVersion(ctx, *link.VersionID)
		if err != nil {
			return nil, err
		}
	} else {
		if asset.CurrentPublishedVersionID == nil {
			return nil, domain.ErrNoPublishedVersion
		}
		version, err = s.versions.GetVersion(ctx, *asset.CurrentPublishedVersionID)
		if err != nil {
			return nil, err
		}
	}

	// Смерть ссылки вместе с ассетом: даже закрепленная ссылка гибнет,
	// если текущая версия ассета протухла
	if link.ExpireWithAsset && asset.CurrentPublishedVersionID != nil {
		current := version
		if link.IsPinned() && *asset.CurrentPublishedVersionID != version.ID {
			current, err = s.versions.GetVersion(ctx, *asset.CurrentPublishedVersionID)
			if err != nil {
				return nil, err
			}
		}
		if current.Status == domain.VersionStatusExpired {
			if err := s.links.MarkShareLinkExpired(ctx, link.ID); err != nil {
				return nil, fmt.Errorf("failed to expire share link: %w", err)
			}
			return nil, domain.ErrExpiredWithAsset
		}
	}

	if version.Status != domain.VersionStatusPublished {
		return nil, domain.ErrNotAvailable
	}

	// Признак "есть версия новее" имеет смысл только для закрепленных ссылок:
	// каноническая по построению смотрит на текущую
	newer := false
	if link.IsPinned() {
		newer, err = s.versions.HasNewerPublished(ctx, link.AssetID, version.VersionNumber)
		if err != nil {
			newer = false
		}
	}

	return &Resolution{
		ShareLink:             link,
		Asset:                 asset,
		Version:               version,
		NewerVersionAvailable: newer,
	}, nil
}

// GetByToken отдает ссылку без разбора доступности (нужно для верификации)
func (s *ShareLinkService) GetByToken(ctx context.Context, token string) (*domain.ShareLink, error) {
	return s.links.GetShareLinkByToken(ctx, token)
}

func (s *ShareLinkService) Revoke(ctx context.Context, linkID uuid.UUID, actorID string) error {
	return s.links.RevokeShareLink(ctx, linkID, actorID)
}

// InviteRecipient приглашает получателя на ссылку с проверкой по почте
func (s *ShareLinkService) InviteRecipient(ctx context.Context, linkID uuid.UUID, actorID string, email string) (*domain.ShareRecipient, error) {
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", domain.ErrBadRequest)
	}

	link, err := s.links.GetShareLink(ctx, linkID)
	if err != nil {
		return nil, err
	}
	if link.CreatedBy != actorID {
		return nil, fmt.Errorf("%w: only the link owner can invite recipients", domain.ErrUnauthorized)
	}
	if link.AccessMode != domain.AccessModeEmailVerify {
		return nil, fmt.Errorf("%w: link does not require email verification", domain.ErrBadRequest)
	}

	verificationToken, err := generateToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate verification token: %w", err)
	}

	recipient := &domain.ShareRecipient{
		ShareLinkID:       linkID,
		Email:             email,
		VerificationToken: verificationToken,
	}

	if err := s.links.AddRecipient(ctx, recipient); err != nil {
		return nil, fmt.Errorf("failed to add recipient: %w", err)
	}

	return recipient, nil
}

func (s *ShareLinkService) ListEvents(ctx context.Context, linkID uuid.UUID, actorID string, limit int) ([]domain.ShareEvent, error) {
	link, err := s.links.GetShareLink(ctx, linkID)
	if err != nil {
		return nil, err
	}
	if link.CreatedBy != actorID {
		return nil, fmt.Errorf("%w: only the link owner can list events", domain.ErrUnauthorized)
	}

	if limit <= 0 || limit > 500 {
		limit = 100
	}

	return s.links.ListEvents(ctx, linkID, limit)
}
