package service_test

import (
	"context"
	"testing"
	"time"

	"enablehub/internal/domain"
	"enablehub/internal/service"
	"enablehub/internal/storetest"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func publish(t *testing.T, store *storetest.Store, version *domain.AssetVersion) {
	t.Helper()
	require.NoError(t, store.PromoteVersion(context.Background(), version.ID, domain.VersionStatusDraft, "release"))
}

func newLink(t *testing.T, store *storetest.Store, link *domain.ShareLink) *domain.ShareLink {
	t.Helper()
	if link.ID == uuid.Nil {
		link.ID = uuid.New()
	}
	if link.Status == "" {
		link.Status = domain.ShareLinkStatusActive
	}
	if link.AccessMode == "" {
		link.AccessMode = domain.AccessModePublic
	}
	require.NoError(t, store.CreateShareLink(context.Background(), link))
	return link
}

func TestCreateShareLinkGeneratesToken(t *testing.T) {
	ctx := context.Background()
	store := storetest.New()
	asset := newAsset(t, store, "owner")

	svc := service.NewShareLinkService(store, store)

	link, err := svc.CreateShareLink(ctx, service.CreateShareLinkInput{
		AssetID:       asset.ID,
		AllowDownload: true,
		CreatedBy:     "owner",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, link.Token)
	assert.Equal(t, domain.ShareLinkStatusActive, link.Status)
	assert.Equal(t, domain.AccessModePublic, link.AccessMode)
	assert.False(t, link.IsPinned())
}

func TestCreateShareLinkRejectsForeignVersion(t *testing.T) {
	ctx := context.Background()
	store := storetest.New()
	asset := newAsset(t, store, "owner")
	other := newAsset(t, store, "owner")
	foreign := newDraft(t, store, other.ID)

	svc := service.NewShareLinkService(store, store)

	_, err := svc.CreateShareLink(ctx, service.CreateShareLinkInput{
		AssetID:   asset.ID,
		VersionID: &foreign.ID,
		CreatedBy: "owner",
	})
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestCreateShareLinkRequiresOwnership(t *testing.T) {
	ctx := context.Background()
	store := storetest.New()
	asset := newAsset(t, store, "owner")

	svc := service.NewShareLinkService(store, store)

	_, err := svc.CreateShareLink(ctx, service.CreateShareLinkInput{
		AssetID:   asset.ID,
		CreatedBy: "intruder",
	})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestResolveUnknownToken(t *testing.T) {
	store := storetest.New()
	svc := service.NewShareLinkService(store, store)

	_, err := svc.Resolve(context.Background(), "no-such-token")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestResolveCanonicalFollowsCurrentVersion(t *testing.T) {
	ctx := context.Background()
	store := storetest.New()
	asset := newAsset(t, store, "owner")
	first := newDraft(t, store, asset.ID)
	publish(t, store, first)

	link := newLink(t, store, &domain.ShareLink{
		Token:     "canonical",
		AssetID:   asset.ID,
		CreatedBy: "owner",
	})

	svc := service.NewShareLinkService(store, store)

	resolution, err := svc.Resolve(ctx, link.Token)
	require.NoError(t, err)
	assert.Equal(t, first.ID, resolution.Version.ID)
	assert.False(t, resolution.NewerVersionAvailable)

	// После публикации новой версии каноническая ссылка следует за ней
	second := newDraft(t, store, asset.ID)
	publish(t, store, second)

	resolution, err = svc.Resolve(ctx, link.Token)
	require.NoError(t, err)
	assert.Equal(t, second.ID, resolution.Version.ID)
	assert.False(t, resolution.NewerVersionAvailable)
}

func TestResolvePinnedVersionLifecycle(t *testing.T) {
	ctx := context.Background()
	store := storetest.New()
	asset := newAsset(t, store, "owner")
	first := newDraft(t, store, asset.ID)
	publish(t, store, first)

	link := newLink(t, store, &domain.ShareLink{
		Token:     "pinned",
		AssetID:   asset.ID,
		VersionID: &first.ID,
		CreatedBy: "owner",
	})

	svc := service.NewShareLinkService(store, store)

	resolution, err := svc.Resolve(ctx, link.Token)
	require.NoError(t, err)
	assert.Equal(t, first.ID, resolution.Version.ID)
	assert.False(t, resolution.NewerVersionAvailable)

	second := newDraft(t, store, asset.ID)
	publish(t, store, second)

	// Закрепленная ссылка продолжила бы отдавать first, но та ушла в deprecated
	_, err = svc.Resolve(ctx, link.Token)
	assert.ErrorIs(t, err, domain.ErrNotAvailable)
}

func TestResolveNoPublishedVersion(t *testing.T) {
	ctx := context.Background()
	store := storetest.New()
	asset := newAsset(t, store, "owner")
	newDraft(t, store, asset.ID)

	link := newLink(t, store, &domain.ShareLink{
		Token:     "draft-only",
		AssetID:   asset.ID,
		CreatedBy: "owner",
	})

	svc := service.NewShareLinkService(store, store)

	_, err := svc.Resolve(ctx, link.Token)
	assert.ErrorIs(t, err, domain.ErrNoPublishedVersion)
}

func TestResolveRevokedLink(t *testing.T) {
	ctx := context.Background()
	store := storetest.New()
	asset := newAsset(t, store, "owner")
	version := newDraft(t, store, asset.ID)
	publish(t, store, version)

	link := newLink(t, store, &domain.ShareLink{
		Token:     "revoked",
		AssetID:   asset.ID,
		Status:    domain.ShareLinkStatusRevoked,
		CreatedBy: "owner",
	})

	svc := service.NewShareLinkService(store, store)

	_, err := svc.Resolve(ctx, link.Token)
	assert.ErrorIs(t, err, domain.ErrRevoked)
}

func TestResolveLazilyExpiresLink(t *testing.T) {
	ctx := context.Background()
	store := storetest.New()
	asset := newAsset(t, store, "owner")
	version := newDraft(t, store, asset.ID)
	publish(t, store, version)

	past := time.Now().Add(-time.Hour)
	link := newLink(t, store, &domain.ShareLink{
		Token:     "stale",
		AssetID:   asset.ID,
		ExpiresAt: &past,
		CreatedBy: "owner",
	})

	svc := service.NewShareLinkService(store, store)

	_, err := svc.Resolve(ctx, link.Token)
	assert.ErrorIs(t, err, domain.ErrExpired)

	// Протухание материализовано в хранилище
	stored, getErr := store.GetShareLink(ctx, link.ID)
	require.NoError(t, getErr)
	assert.Equal(t, domain.ShareLinkStatusExpired, stored.Status)
}

func TestResolveLazyExpireWriteFailure(t *testing.T) {
	ctx := context.Background()
	store := storetest.New()
	asset := newAsset(t, store, "owner")
	version := newDraft(t, store, asset.ID)
	publish(t, store, version)

	past := time.Now().Add(-time.Hour)
	link := newLink(t, store, &domain.ShareLink{
		Token:     "stale-broken",
		AssetID:   asset.ID,
		ExpiresAt: &past,
		CreatedBy: "owner",
	})

	store.FailMarkExpired = true
	svc := service.NewShareLinkService(store, store)

	// Отказ записи не подменяется ответом "expired"
	_, err := svc.Resolve(ctx, link.Token)
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrExpired)
}

func TestResolveExpireWithAsset(t *testing.T) {
	ctx := context.Background()
	store := storetest.New()
	asset := newAsset(t, store, "owner")
	version := newDraft(t, store, asset.ID)
	publish(t, store, version)

	link := newLink(t, store, &domain.ShareLink{
		Token:           "tied",
		AssetID:         asset.ID,
		ExpireWithAsset: true,
		CreatedBy:       "owner",
	})

	svc := service.NewShareLinkService(store, store)
	lifecycle := service.NewLifecycleService(store)

	_, err := svc.Resolve(ctx, link.Token)
	require.NoError(t, err)

	// Текущая версия протухает, ссылка гибнет вместе с ней
	_, err = lifecycle.Transition(ctx, version.ID, domain.VersionStatusExpired)
	require.NoError(t, err)

	_, err = svc.Resolve(ctx, link.Token)
	assert.ErrorIs(t, err, domain.ErrExpiredWithAsset)

	stored, getErr := store.GetShareLink(ctx, link.ID)
	require.NoError(t, getErr)
	assert.Equal(t, domain.ShareLinkStatusExpired, stored.Status)

	// Повторный заход видит уже материализованное протухание
	_, err = svc.Resolve(ctx, link.Token)
	assert.ErrorIs(t, err, domain.ErrExpired)
}

func TestResolveDeletedAsset(t *testing.T) {
	ctx := context.Background()
	store := storetest.New()
	asset := newAsset(t, store, "owner")
	version := newDraft(t, store, asset.ID)
	publish(t, store, version)

	link := newLink(t, store, &domain.ShareLink{
		Token:     "orphaned",
		AssetID:   asset.ID,
		CreatedBy: "owner",
	})

	require.NoError(t, store.SoftDeleteAsset(ctx, asset.ID))

	svc := service.NewShareLinkService(store, store)

	_, err := svc.Resolve(ctx, link.Token)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestInviteRecipientRequiresEmailVerifyMode(t *testing.T) {
	ctx := context.Background()
	store := storetest.New()
	asset := newAsset(t, store, "owner")

	link := newLink(t, store, &domain.ShareLink{
		Token:      "open",
		AssetID:    asset.ID,
		AccessMode: domain.AccessModePublic,
		CreatedBy:  "owner",
	})

	svc := service.NewShareLinkService(store, store)

	_, err := svc.InviteRecipient(ctx, link.ID, "owner", "reader@example.com")
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestInviteRecipientIssuesToken(t *testing.T) {
	ctx := context.Background()
	store := storetest.New()
	asset := newAsset(t, store, "owner")

	link := newLink(t, store, &domain.ShareLink{
		Token:      "gated",
		AssetID:    asset.ID,
		AccessMode: domain.AccessModeEmailVerify,
		CreatedBy:  "owner",
	})

	svc := service.NewShareLinkService(store, store)

	recipient, err := svc.InviteRecipient(ctx, link.ID, "owner", "reader@example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, recipient.VerificationToken)
	assert.False(t, recipient.Verified)

	_, err = svc.InviteRecipient(ctx, link.ID, "stranger", "reader@example.com")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestRevokeShareLink(t *testing.T) {
	ctx := context.Background()
	store := storetest.New()
	asset := newAsset(t, store, "owner")

	link := newLink(t, store, &domain.ShareLink{
		Token:     "to-revoke",
		AssetID:   asset.ID,
		CreatedBy: "owner",
	})

	svc := service.NewShareLinkService(store, store)

	assert.ErrorIs(t, svc.Revoke(ctx, link.ID, "stranger"), domain.ErrNotFound)
	require.NoError(t, svc.Revoke(ctx, link.ID, "owner"))

	stored, err := store.GetShareLink(ctx, link.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ShareLinkStatusRevoked, stored.Status)
}
