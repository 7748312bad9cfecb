// Package storetest содержит потокобезопасные реализации хранилищ в памяти
// для тестов сервисного слоя.
package storetest

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"enablehub/internal/domain"

	"github.com/google/uuid"
)

// Store реализует оба интерфейса хранилищ поверх карт в памяти.
// Флаги Fail* позволяют имитировать отказ конкретной операции.
type Store struct {
	mu sync.Mutex

	assets     map[uuid.UUID]*domain.Asset
	versions   map[uuid.UUID]*domain.AssetVersion
	links      map[uuid.UUID]*domain.ShareLink
	recipients map[uuid.UUID]map[string]*domain.ShareRecipient
	events     []domain.ShareEvent

	nextRecipientID int64

	FailMarkExpired      bool
	FailAppendEvent      bool
	FailUpdateLastAccess bool
}

func New() *Store {
	return &Store{
		assets:     make(map[uuid.UUID]*domain.Asset),
		versions:   make(map[uuid.UUID]*domain.AssetVersion),
		links:      make(map[uuid.UUID]*domain.ShareLink),
		recipients: make(map[uuid.UUID]map[string]*domain.ShareRecipient),
	}
}

func copyAsset(a *domain.Asset) *domain.Asset {
	c := *a
	return &c
}

func copyVersion(v *domain.AssetVersion) *domain.AssetVersion {
	c := *v
	return &c
}

func copyLink(l *domain.ShareLink) *domain.ShareLink {
	c := *l
	return &c
}

func (s *Store) CreateAsset(ctx context.Context, asset *domain.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	asset.CreatedAt = now
	asset.UpdatedAt = now
	s.assets[asset.ID] = copyAsset(asset)
	return nil
}

func (s *Store) GetAsset(ctx context.Context, id uuid.UUID) (*domain.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	asset, ok := s.assets[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyAsset(asset), nil
}

func (s *Store) SoftDeleteAsset(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	asset, ok := s.assets[id]
	if !ok || asset.DeletedAt != nil {
		return domain.ErrNotFound
	}
	now := time.Now()
	asset.DeletedAt = &now
	asset.UpdatedAt = now
	return nil
}

func (s *Store) CreateDraft(ctx context.Context, version *domain.AssetVersion) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	asset, ok := s.assets[version.AssetID]
	if !ok || asset.DeletedAt != nil {
		return domain.ErrNotFound
	}

	max := 0
	for _, v := range s.versions {
		if v.AssetID == version.AssetID && v.VersionNumber > max {
			max = v.VersionNumber
		}
	}

	now := time.Now()
	version.VersionNumber = max + 1
	version.Status = domain.VersionStatusDraft
	version.CreatedAt = now
	version.UpdatedAt = now
	s.versions[version.ID] = copyVersion(version)
	return nil
}

func (s *Store) GetVersion(ctx context.Context, id uuid.UUID) (*domain.AssetVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	version, ok := s.versions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyVersion(version), nil
}

func (s *Store) ListVersions(ctx context.Context, assetID uuid.UUID) ([]domain.AssetVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []domain.AssetVersion
	for _, v := range s.versions {
		if v.AssetID == assetID {
			result = append(result, *v)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].VersionNumber > result[j].VersionNumber
	})
	return result, nil
}

func (s *Store) SetVersionStatus(ctx context.Context, id uuid.UUID, from, to domain.VersionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	version, ok := s.versions[id]
	if !ok {
		return domain.ErrNotFound
	}
	if version.Status != from {
		return domain.ErrConflict
	}
	version.Status = to
	if to == domain.VersionStatusDraft {
		version.PublishAt = nil
	}
	version.UpdatedAt = time.Now()
	return nil
}

func (s *Store) ScheduleVersion(ctx context.Context, id uuid.UUID, publishAt time.Time, from domain.VersionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	version, ok := s.versions[id]
	if !ok {
		return domain.ErrNotFound
	}
	if version.Status != from {
		return domain.ErrConflict
	}
	version.Status = domain.VersionStatusScheduled
	version.PublishAt = &publishAt
	version.UpdatedAt = time.Now()
	return nil
}

func (s *Store) PromoteVersion(ctx context.Context, versionID uuid.UUID, from domain.VersionStatus, changeLog string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	version, ok := s.versions[versionID]
	if !ok {
		return domain.ErrNotFound
	}
	if version.Status != from {
		return domain.ErrConflict
	}

	asset, ok := s.assets[version.AssetID]
	if !ok || asset.DeletedAt != nil {
		return domain.ErrNotFound
	}

	now := time.Now()
	version.Status = domain.VersionStatusPublished
	if changeLog != "" {
		version.ChangeLog = changeLog
	}
	version.UpdatedAt = now

	// Прежняя текущая версия уступает место новой
	if asset.CurrentPublishedVersionID != nil && *asset.CurrentPublishedVersionID != versionID {
		if prior, ok := s.versions[*asset.CurrentPublishedVersionID]; ok && prior.Status == domain.VersionStatusPublished {
			prior.Status = domain.VersionStatusDeprecated
			prior.UpdatedAt = now
		}
	}

	id := versionID
	asset.CurrentPublishedVersionID = &id
	asset.UpdatedAt = now
	return nil
}

func (s *Store) HasNewerPublished(ctx context.Context, assetID uuid.UUID, versionNumber int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, v := range s.versions {
		if v.AssetID == assetID && v.VersionNumber > versionNumber && v.Status == domain.VersionStatusPublished {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) ListDueScheduled(ctx context.Context, now time.Time) ([]domain.AssetVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []domain.AssetVersion
	for _, v := range s.versions {
		if v.Status == domain.VersionStatusScheduled && v.PublishAt != nil && !v.PublishAt.After(now) {
			due = append(due, *v)
		}
	}
	return due, nil
}

func (s *Store) ListDueExpiring(ctx context.Context, now time.Time) ([]domain.AssetVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []domain.AssetVersion
	for _, v := range s.versions {
		if v.Status == domain.VersionStatusPublished && v.ExpireAt != nil && !v.ExpireAt.After(now) {
			due = append(due, *v)
		}
	}
	return due, nil
}

func (s *Store) CreateShareLink(ctx context.Context, link *domain.ShareLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	link.CreatedAt = now
	link.UpdatedAt = now
	s.links[link.ID] = copyLink(link)
	return nil
}

func (s *Store) GetShareLinkByToken(ctx context.Context, token string) (*domain.ShareLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, l := range s.links {
		if l.Token == token {
			return copyLink(l), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *Store) GetShareLink(ctx context.Context, id uuid.UUID) (*domain.ShareLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	link, ok := s.links[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyLink(link), nil
}

func (s *Store) MarkShareLinkExpired(ctx context.Context, id uuid.UUID) error {
	if s.FailMarkExpired {
		return errors.New("storetest: mark expired failed")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	link, ok := s.links[id]
	if !ok {
		return domain.ErrNotFound
	}
	if link.Status == domain.ShareLinkStatusActive {
		link.Status = domain.ShareLinkStatusExpired
		link.UpdatedAt = time.Now()
	}
	return nil
}

func (s *Store) RevokeShareLink(ctx context.Context, id uuid.UUID, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	link, ok := s.links[id]
	if !ok || link.CreatedBy != ownerID || link.Status == domain.ShareLinkStatusRevoked {
		return domain.ErrNotFound
	}
	link.Status = domain.ShareLinkStatusRevoked
	link.UpdatedAt = time.Now()
	return nil
}

func (s *Store) UpdateLastAccess(ctx context.Context, id uuid.UUID, at time.Time) error {
	if s.FailUpdateLastAccess {
		return errors.New("storetest: update last access failed")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	link, ok := s.links[id]
	if !ok {
		return domain.ErrNotFound
	}
	link.LastAccessAt = &at
	return nil
}

func (s *Store) HasActiveLinksForAsset(ctx context.Context, assetID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, l := range s.links {
		if l.AssetID == assetID && l.Status != domain.ShareLinkStatusRevoked {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) AddRecipient(ctx context.Context, recipient *domain.ShareRecipient) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byEmail, ok := s.recipients[recipient.ShareLinkID]
	if !ok {
		byEmail = make(map[string]*domain.ShareRecipient)
		s.recipients[recipient.ShareLinkID] = byEmail
	}

	if existing, ok := byEmail[recipient.Email]; ok {
		existing.VerificationToken = recipient.VerificationToken
		recipient.ID = existing.ID
		recipient.Verified = existing.Verified
		recipient.CreatedAt = existing.CreatedAt
		return nil
	}

	s.nextRecipientID++
	recipient.ID = s.nextRecipientID
	recipient.CreatedAt = time.Now()
	c := *recipient
	byEmail[recipient.Email] = &c
	return nil
}

func (s *Store) GetRecipient(ctx context.Context, shareLinkID uuid.UUID, email string) (*domain.ShareRecipient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if byEmail, ok := s.recipients[shareLinkID]; ok {
		if r, ok := byEmail[email]; ok {
			c := *r
			return &c, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *Store) MarkRecipientVerified(ctx context.Context, shareLinkID uuid.UUID, email string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if byEmail, ok := s.recipients[shareLinkID]; ok {
		if r, ok := byEmail[email]; ok {
			r.Verified = true
			r.VerifiedAt = &at
			return nil
		}
	}
	return domain.ErrNotFound
}

func (s *Store) AppendEvent(ctx context.Context, event *domain.ShareEvent) error {
	if s.FailAppendEvent {
		return errors.New("storetest: append event failed")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, *event)
	return nil
}

func (s *Store) ListEvents(ctx context.Context, shareLinkID uuid.UUID, limit int) ([]domain.ShareEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []domain.ShareEvent
	for _, e := range s.events {
		if e.ShareLinkID == shareLinkID {
			result = append(result, e)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Events возвращает снимок всех записанных событий
func (s *Store) Events() []domain.ShareEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.ShareEvent, len(s.events))
	copy(out, s.events)
	return out
}
