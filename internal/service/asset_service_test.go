package service_test

import (
	"context"
	"testing"
	"time"

	"enablehub/internal/domain"
	"enablehub/internal/service"
	"enablehub/internal/storetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAssetRequiresTitle(t *testing.T) {
	store := storetest.New()
	svc := service.NewAssetService(store, store)

	_, err := svc.CreateAsset(context.Background(), "", "owner", "")
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestCreateDraftVersionChecksOwnership(t *testing.T) {
	ctx := context.Background()
	store := storetest.New()
	svc := service.NewAssetService(store, store)

	asset, err := svc.CreateAsset(ctx, "playbook", "owner", "")
	require.NoError(t, err)
	assert.Equal(t, domain.SourceTypeUpload, asset.SourceType)

	_, err = svc.CreateDraftVersion(ctx, asset.ID, "stranger", "key", "application/pdf", 10, "", nil)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	expireAt := time.Now().Add(24 * time.Hour)
	version, err := svc.CreateDraftVersion(ctx, asset.ID, "owner", "key", "application/pdf", 10, "first cut", &expireAt)
	require.NoError(t, err)
	assert.Equal(t, 1, version.VersionNumber)
	require.NotNil(t, version.ExpireAt)
	assert.Equal(t, expireAt, *version.ExpireAt)
}

func TestDeleteAssetRefusedWhileLinksRemain(t *testing.T) {
	ctx := context.Background()
	store := storetest.New()
	svc := service.NewAssetService(store, store)
	shareSvc := service.NewShareLinkService(store, store)

	asset, err := svc.CreateAsset(ctx, "playbook", "owner", "")
	require.NoError(t, err)

	link, err := shareSvc.CreateShareLink(ctx, service.CreateShareLinkInput{
		AssetID:   asset.ID,
		CreatedBy: "owner",
	})
	require.NoError(t, err)

	// Неотозванная ссылка блокирует удаление
	err = svc.DeleteAsset(ctx, asset.ID, "owner")
	assert.ErrorIs(t, err, domain.ErrConflict)

	require.NoError(t, shareSvc.Revoke(ctx, link.ID, "owner"))
	require.NoError(t, svc.DeleteAsset(ctx, asset.ID, "owner"))

	_, err = svc.GetAsset(ctx, asset.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
