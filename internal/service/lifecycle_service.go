package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"enablehub/internal/domain"

	"github.com/google/uuid"
)

// Допустимые ребра жизненного цикла версии. Публикация идет отдельной веткой
// через PromoteVersion, остальные переходы — условной записью статуса.
var allowedTransitions = map[domain.VersionStatus]map[domain.VersionStatus]bool{
	domain.VersionStatusDraft: {
		domain.VersionStatusScheduled: true,
		domain.VersionStatusPublished: true,
	},
	domain.VersionStatusScheduled: {
		domain.VersionStatusDraft:     true, // отмена расписания
		domain.VersionStatusPublished: true,
	},
	domain.VersionStatusPublished: {
		domain.VersionStatusExpired:  true,
		domain.VersionStatusArchived: true,
	},
	domain.VersionStatusExpired: {
		domain.VersionStatusArchived: true,
	},
	domain.VersionStatusDeprecated: {
		domain.VersionStatusArchived: true,
	},
}

type LifecycleService struct {
	versions VersionStore
}

func NewLifecycleService(versions VersionStore) *LifecycleService {
	return &LifecycleService{versions: versions}
}

// Transition переводит версию по одному из разрешенных ребер.
// Недопустимое ребро — ErrInvalidTransition; проигранная гонка — ErrConflict.
func (s *LifecycleService) Transition(ctx context.Context, versionID uuid.UUID, target domain.VersionStatus) (*domain.AssetVersion, error) {
	version, err := s.versions.GetVersion(ctx, versionID)
	if err != nil {
		return nil, err
	}

	if !allowedTransitions[version.Status][target] {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, version.Status, target)
	}

	if target == domain.VersionStatusPublished {
		if err := s.versions.PromoteVersion(ctx, versionID, version.Status, ""); err != nil {
			return nil, err
		}
	} else {
		if err := s.versions.SetVersionStatus(ctx, versionID, version.Status, target); err != nil {
			return nil, err
		}
	}

	return s.versions.GetVersion(ctx, versionID)
}

// PublishNow публикует версию немедленно, независимо от publish_at.
// change_log обязателен.
func (s *LifecycleService) PublishNow(ctx context.Context, versionID uuid.UUID, changeLog string) (*domain.AssetVersion, error) {
	if changeLog == "" {
		return nil, fmt.Errorf("%w: change_log is required", domain.ErrBadRequest)
	}

	version, err := s.versions.GetVersion(ctx, versionID)
	if err != nil {
		return nil, err
	}

	if !allowedTransitions[version.Status][domain.VersionStatusPublished] {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, version.Status, domain.VersionStatusPublished)
	}

	if err := s.versions.PromoteVersion(ctx, versionID, version.Status, changeLog); err != nil {
		return nil, err
	}

	return s.versions.GetVersion(ctx, versionID)
}

// Schedule назначает публикацию на будущий момент. Только из draft.
func (s *LifecycleService) Schedule(ctx context.Context, versionID uuid.UUID, publishAt time.Time) (*domain.AssetVersion, error) {
	if !publishAt.After(time.Now()) {
		return nil, fmt.Errorf("%w: publish_at must be in the future", domain.ErrBadRequest)
	}

	version, err := s.versions.GetVersion(ctx, versionID)
	if err != nil {
		return nil, err
	}

	if !allowedTransitions[version.Status][domain.VersionStatusScheduled] {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, version.Status, domain.VersionStatusScheduled)
	}

	if err := s.versions.ScheduleVersion(ctx, versionID, publishAt, version.Status); err != nil {
		return nil, err
	}

	return s.versions.GetVersion(ctx, versionID)
}

// Unschedule возвращает версию из scheduled в draft
func (s *LifecycleService) Unschedule(ctx context.Context, versionID uuid.UUID) (*domain.AssetVersion, error) {
	return s.Transition(ctx, versionID, domain.VersionStatusDraft)
}

// PublishDue публикует все версии с наступившим publish_at. Вызывается
// периодическим тикером; конфликт по отдельной версии означает, что ее уже
// опубликовали или увели из scheduled — такие пропускаем.
func (s *LifecycleService) PublishDue(ctx context.Context) error {
	due, err := s.versions.ListDueScheduled(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("failed to list due versions: %w", err)
	}

	for _, version := range due {
		if err := s.versions.PromoteVersion(ctx, version.ID, domain.VersionStatusScheduled, ""); err != nil {
			log.Printf("[Lifecycle] Failed to publish due version %s: %v", version.ID, err)
			continue
		}
		log.Printf("[Lifecycle] Published scheduled version %s (asset %s)", version.ID, version.AssetID)
	}

	return nil
}

// ExpireDue переводит в expired опубликованные версии с наступившим expire_at.
// Конфликт по отдельной версии означает, что ее уже увели из published.
func (s *LifecycleService) ExpireDue(ctx context.Context) error {
	due, err := s.versions.ListDueExpiring(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("failed to list expiring versions: %w", err)
	}

	for _, version := range due {
		if err := s.versions.SetVersionStatus(ctx, version.ID, domain.VersionStatusPublished, domain.VersionStatusExpired); err != nil {
			log.Printf("[Lifecycle] Failed to expire due version %s: %v", version.ID, err)
			continue
		}
		log.Printf("[Lifecycle] Expired version %s (asset %s)", version.ID, version.AssetID)
	}

	return nil
}
