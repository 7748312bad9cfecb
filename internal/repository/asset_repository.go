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

type AssetRepository struct {
	db *sqlx.DB
}

func NewAssetRepository(db *sqlx.DB) *AssetRepository {
	return &AssetRepository{db: db}
}

func (r *AssetRepository) CreateAsset(ctx context.Context, asset *domain.Asset) error {
	query := `
        INSERT INTO assets (id, title, owner_id, source_type)
        VALUES ($1, $2, $3, $4)
        RETURNING created_at, updated_at`

	return r.db.QueryRowContext(
		ctx,
		query,
		asset.ID,
		asset.Title,
		asset.OwnerID,
		asset.SourceType,
	).Scan(&asset.CreatedAt, &asset.UpdatedAt)
}

func (r *AssetRepository) GetAsset(ctx context.Context, id uuid.UUID) (*domain.Asset, error) {
	var asset domain.Asset
	query := `SELECT * FROM assets WHERE id = $1`

	err := r.db.GetContext(ctx, &asset, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get asset: %w", err)
	}

	return &asset, nil
}

func (r *AssetRepository) SoftDeleteAsset(ctx context.Context, id uuid.UUID) error {
	query := `
        UPDATE assets
        SET deleted_at = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP
        WHERE id = $1 AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to soft delete asset: %w", err)
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

// CreateDraft создает черновую версию. version_number присваивается один раз,
// как max(существующих) + 1, и больше никогда не меняется. Выборка максимума и
// вставка идут в одной транзакции, чтобы номера не дублировались.
func (r *AssetRepository) CreateDraft(ctx context.Context, version *domain.AssetVersion) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Блокируем ассет на время присвоения номера
	var assetID uuid.UUID
	err = tx.GetContext(ctx, &assetID,
		`SELECT id FROM assets WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`,
		version.AssetID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("failed to lock asset: %w", err)
	}

	query := `
        INSERT INTO asset_versions (id, asset_id, version_number, status, s3_key, mime_type, size_bytes, change_log, expire_at)
        VALUES (
            $1, $2,
            (SELECT COALESCE(MAX(version_number), 0) + 1 FROM asset_versions WHERE asset_id = $2),
            $3, $4, $5, $6, $7, $8
        )
        RETURNING version_number, created_at, updated_at`

	err = tx.QueryRowContext(
		ctx,
		query,
		version.ID,
		version.AssetID,
		domain.VersionStatusDraft,
		version.S3Key,
		version.MIMEType,
		version.SizeBytes,
		version.ChangeLog,
		version.ExpireAt,
	).Scan(&version.VersionNumber, &version.CreatedAt, &version.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create draft version: %w", err)
	}

	version.Status = domain.VersionStatusDraft
	return tx.Commit()
}

func (r *AssetRepository) GetVersion(ctx context.Context, id uuid.UUID) (*domain.AssetVersion, error) {
	var version domain.AssetVersion
	query := `SELECT * FROM asset_versions WHERE id = $1`

	err := r.db.GetContext(ctx, &version, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get version: %w", err)
	}

	return &version, nil
}

func (r *AssetRepository) ListVersions(ctx context.Context, assetID uuid.UUID) ([]domain.AssetVersion, error) {
	var versions []domain.AssetVersion
	query := `
        SELECT * FROM asset_versions
        WHERE asset_id = $1
        ORDER BY version_number DESC`

	err := r.db.SelectContext(ctx, &versions, query, assetID)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}

	return versions, nil
}

// SetVersionStatus выполняет условный перевод статуса (WHERE status = from).
// Ноль затронутых строк означает проигранную гонку или недопустимое исходное
// состояние — наружу уходит ErrConflict, вызывающий перечитывает и повторяет.
func (r *AssetRepository) SetVersionStatus(ctx context.Context, id uuid.UUID, from, to domain.VersionStatus) error {
	query := `
        UPDATE asset_versions
        SET status = $1,
            publish_at = CASE WHEN $1 = 'draft' THEN NULL ELSE publish_at END,
            updated_at = CURRENT_TIMESTAMP
        WHERE id = $2 AND status = $3`

	result, err := r.db.ExecContext(ctx, query, to, id, from)
	if err != nil {
		return fmt.Errorf("failed to update version status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return domain.ErrConflict
	}

	return nil
}

func (r *AssetRepository) ScheduleVersion(ctx context.Context, id uuid.UUID, publishAt time.Time, from domain.VersionStatus) error {
	query := `
        UPDATE asset_versions
        SET status = $1, publish_at = $2, updated_at = CURRENT_TIMESTAMP
        WHERE id = $3 AND status = $4`

	result, err := r.db.ExecContext(ctx, query, domain.VersionStatusScheduled, publishAt, id, from)
	if err != nil {
		return fmt.Errorf("failed to schedule version: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return domain.ErrConflict
	}

	return nil
}

// PromoteVersion публикует версию в одной транзакции: сперва статус версии
// (условно на ожидаемый исходный), затем прежняя текущая версия переводится в
// deprecated, и последней идет запись указателя ассета — она же точка фиксации.
// Условие на прежнее значение указателя сохраняет CAS-дисциплину: из двух
// конкурентных публикаций одна получает ErrConflict.
func (r *AssetRepository) PromoteVersion(ctx context.Context, versionID uuid.UUID, from domain.VersionStatus, changeLog string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var version domain.AssetVersion
	err = tx.GetContext(ctx, &version,
		`SELECT * FROM asset_versions WHERE id = $1 FOR UPDATE`, versionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("failed to lock version: %w", err)
	}

	var asset domain.Asset
	err = tx.GetContext(ctx, &asset,
		`SELECT * FROM assets WHERE id = $1 FOR UPDATE`, version.AssetID)
	if err != nil {
		return fmt.Errorf("failed to lock asset: %w", err)
	}

	// Статус версии пишется раньше указателя ассета
	result, err := tx.ExecContext(ctx, `
        UPDATE asset_versions
        SET status = $1,
            change_log = CASE WHEN $2 <> '' THEN $2 ELSE change_log END,
            updated_at = CURRENT_TIMESTAMP
        WHERE id = $3 AND status = $4`,
		domain.VersionStatusPublished, changeLog, versionID, from)
	if err != nil {
		return fmt.Errorf("failed to publish version: %w", err)
	}
	if rows, err := result.RowsAffected(); err != nil {
		return err
	} else if rows == 0 {
		return domain.ErrConflict
	}

	// Прежняя текущая версия уходит в deprecated, не в archived:
	// по прямой ссылке она остается доступной
	if asset.CurrentPublishedVersionID != nil && *asset.CurrentPublishedVersionID != versionID {
		_, err = tx.ExecContext(ctx, `
            UPDATE asset_versions
            SET status = $1, updated_at = CURRENT_TIMESTAMP
            WHERE id = $2 AND status = $3`,
			domain.VersionStatusDeprecated, *asset.CurrentPublishedVersionID, domain.VersionStatusPublished)
		if err != nil {
			return fmt.Errorf("failed to deprecate previous version: %w", err)
		}
	}

	// Точка фиксации: перенацеливаем указатель условно на прежнее значение
	result, err = tx.ExecContext(ctx, `
        UPDATE assets
        SET current_published_version_id = $1, updated_at = CURRENT_TIMESTAMP
        WHERE id = $2 AND current_published_version_id IS NOT DISTINCT FROM $3`,
		versionID, version.AssetID, asset.CurrentPublishedVersionID)
	if err != nil {
		return fmt.Errorf("failed to repoint asset: %w", err)
	}
	if rows, err := result.RowsAffected(); err != nil {
		return err
	} else if rows == 0 {
		return domain.ErrConflict
	}

	return tx.Commit()
}

func (r *AssetRepository) HasNewerPublished(ctx context.Context, assetID uuid.UUID, versionNumber int) (bool, error) {
	var exists bool
	query := `
        SELECT EXISTS(
            SELECT 1 FROM asset_versions
            WHERE asset_id = $1 AND version_number > $2 AND status = 'published'
        )`

	err := r.db.GetContext(ctx, &exists, query, assetID, versionNumber)
	if err != nil {
		return false, fmt.Errorf("failed to check newer versions: %w", err)
	}

	return exists, nil
}

func (r *AssetRepository) ListDueScheduled(ctx context.Context, now time.Time) ([]domain.AssetVersion, error) {
	var versions []domain.AssetVersion
	query := `
        SELECT * FROM asset_versions
        WHERE status = 'scheduled' AND publish_at IS NOT NULL AND publish_at <= $1
        ORDER BY publish_at`

	err := r.db.SelectContext(ctx, &versions, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list due versions: %w", err)
	}

	return versions, nil
}

func (r *AssetRepository) ListDueExpiring(ctx context.Context, now time.Time) ([]domain.AssetVersion, error) {
	var versions []domain.AssetVersion
	query := `
        SELECT * FROM asset_versions
        WHERE status = 'published' AND expire_at IS NOT NULL AND expire_at <= $1
        ORDER BY expire_at`

	err := r.db.SelectContext(ctx, &versions, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list expiring versions: %w", err)
	}

	return versions, nil
}
