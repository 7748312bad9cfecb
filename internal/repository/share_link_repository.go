package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"enablehub/internal/domain"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type ShareLinkRepository struct {
	db *sqlx.DB
}

func NewShareLinkRepository(db *sqlx.DB) *ShareLinkRepository {
	return &ShareLinkRepository{db: db}
}

func (r *ShareLinkRepository) CreateShareLink(ctx context.Context, link *domain.ShareLink) error {
	query := `
        INSERT INTO share_links (
            id, token, asset_id, version_id, status,
            expires_at, expire_with_asset, access_mode, allow_download, created_by
        ) VALUES (
            $1, $2, $3, $4, $5, $6, $7, $8, $9, $10
        ) RETURNING created_at, updated_at`

	return r.db.QueryRowContext(
		ctx,
		query,
		link.ID,
		link.Token,
		link.AssetID,
		link.VersionID,
		link.Status,
		link.ExpiresAt,
		link.ExpireWithAsset,
		link.AccessMode,
		link.AllowDownload,
		link.CreatedBy,
	).Scan(&link.CreatedAt, &link.UpdatedAt)
}

// GetShareLinkByToken читает ссылку по токену. Чтение идет с primary —
// резолвер не должен видеть устаревшую непротухшую ссылку с реплики.
func (r *ShareLinkRepository) GetShareLinkByToken(ctx context.Context, token string) (*domain.ShareLink, error) {
	var link domain.ShareLink
	query := `SELECT * FROM share_links WHERE token = $1`

	err := r.db.GetContext(ctx, &link, query, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get share link by token: %w", err)
	}

	return &link, nil
}

func (r *ShareLinkRepository) GetShareLink(ctx context.Context, id uuid.UUID) (*domain.ShareLink, error) {
	var link domain.ShareLink
	query := `SELECT * FROM share_links WHERE id = $1`

	err := r.db.GetContext(ctx, &link, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get share link: %w", err)
	}

	return &link, nil
}

// MarkShareLinkExpired — ленивое протухание с условием на активный статус.
// Повторный вызов по уже протухшей ссылке не ошибка: переход идемпотентный.
func (r *ShareLinkRepository) MarkShareLinkExpired(ctx context.Context, id uuid.UUID) error {
	query := `
        UPDATE share_links
        SET status = $1, updated_at = CURRENT_TIMESTAMP
        WHERE id = $2 AND status = $3`

	_, err := r.db.ExecContext(ctx, query, domain.ShareLinkStatusExpired, id, domain.ShareLinkStatusActive)
	if err != nil {
		return fmt.Errorf("failed to mark share link expired: %w", err)
	}

	return nil
}

func (r *ShareLinkRepository) RevokeShareLink(ctx context.Context, id uuid.UUID, ownerID string) error {
	query := `
        UPDATE share_links
        SET status = $1, updated_at = CURRENT_TIMESTAMP
        WHERE id = $2 AND created_by = $3 AND status != $1`

	result, err := r.db.ExecContext(ctx, query, domain.ShareLinkStatusRevoked, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to revoke share link: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return domain.ErrNotFound
	}

	return nil
}

func (r *ShareLinkRepository) UpdateLastAccess(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `UPDATE share_links SET last_access_at = $1 WHERE id = $2`

	_, err := r.db.ExecContext(ctx, query, at, id)
	if err != nil {
		return fmt.Errorf("failed to update last access: %w", err)
	}

	return nil
}

func (r *ShareLinkRepository) HasActiveLinksForAsset(ctx context.Context, assetID uuid.UUID) (bool, error) {
	var exists bool
	query := `
        SELECT EXISTS(
            SELECT 1 FROM share_links
            WHERE asset_id = $1 AND status != 'revoked'
        )`

	err := r.db.GetContext(ctx, &exists, query, assetID)
	if err != nil {
		return false, fmt.Errorf("failed to check active links: %w", err)
	}

	return exists, nil
}

func (r *ShareLinkRepository) AddRecipient(ctx context.Context, recipient *domain.ShareRecipient) error {
	// Одна строка на пару (email, ссылка); повторное приглашение обновляет токен
	query := `
        INSERT INTO share_recipients (share_link_id, email, verification_token)
        VALUES ($1, $2, $3)
        ON CONFLICT (share_link_id, email)
        DO UPDATE SET verification_token = EXCLUDED.verification_token
        RETURNING id, verified, created_at`

	return r.db.QueryRowContext(
		ctx,
		query,
		recipient.ShareLinkID,
		recipient.Email,
		recipient.VerificationToken,
	).Scan(&recipient.ID, &recipient.Verified, &recipient.CreatedAt)
}

func (r *ShareLinkRepository) GetRecipient(ctx context.Context, shareLinkID uuid.UUID, email string) (*domain.ShareRecipient, error) {
	var recipient domain.ShareRecipient
	query := `SELECT * FROM share_recipients WHERE share_link_id = $1 AND email = $2`

	err := r.db.GetContext(ctx, &recipient, query, shareLinkID, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get recipient: %w", err)
	}

	return &recipient, nil
}

func (r *ShareLinkRepository) MarkRecipientVerified(ctx context.Context, shareLinkID uuid.UUID, email string, at time.Time) error {
	query := `
        UPDATE share_recipients
        SET verified = TRUE, verified_at = $1
        WHERE share_link_id = $2 AND email = $3`

	result, err := r.db.ExecContext(ctx, query, at, shareLinkID, email)
	if err != nil {
		return fmt.Errorf("failed to mark recipient verified: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return domain.ErrNotFound
	}

	return nil
}

func (r *ShareLinkRepository) AppendEvent(ctx context.Context, event *domain.ShareEvent) error {
	query := `
        INSERT INTO share_events (
            id, share_link_id, event_type, resolved_version_id,
            actor_ip, actor_user_agent, actor_email
        ) VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING created_at`

	return r.db.QueryRowContext(
		ctx,
		query,
		event.ID,
		event.ShareLinkID,
		event.EventType,
		event.ResolvedVersionID,
		event.ActorIP,
		event.ActorUserAgent,
		event.ActorEmail,
	).Scan(&event.CreatedAt)
}

// ListEvents выбирает события по составному ключу (share_link_id, created_at)
func (r *ShareLinkRepository) ListEvents(ctx context.Context, shareLinkID uuid.UUID, limit int) ([]domain.ShareEvent, error) {
	var events []domain.ShareEvent
	query := `
        SELECT * FROM share_events
        WHERE share_link_id = $1
        ORDER BY created_at DESC
        LIMIT $2`

	err := r.db.SelectContext(ctx, &events, query, shareLinkID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list share events: %w", err)
	}

	return events, nil
}
