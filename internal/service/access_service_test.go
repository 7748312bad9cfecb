package service_test

import (
	"context"
	"testing"

	"enablehub/internal/domain"
	"enablehub/internal/service"
	"enablehub/internal/storetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupGatedLink(t *testing.T) (*storetest.Store, *domain.ShareLink, *domain.ShareRecipient) {
	t.Helper()
	ctx := context.Background()
	store := storetest.New()
	asset := newAsset(t, store, "owner")

	link := newLink(t, store, &domain.ShareLink{
		Token:      "gated",
		AssetID:    asset.ID,
		AccessMode: domain.AccessModeEmailVerify,
		CreatedBy:  "owner",
	})

	recipient := &domain.ShareRecipient{
		ShareLinkID:       link.ID,
		Email:             "reader@example.com",
		VerificationToken: "secret-token",
	}
	require.NoError(t, store.AddRecipient(ctx, recipient))

	return store, link, recipient
}

func TestCheckAccessPublicLink(t *testing.T) {
	store := storetest.New()
	asset := newAsset(t, store, "owner")
	link := newLink(t, store, &domain.ShareLink{
		Token:     "open",
		AssetID:   asset.ID,
		CreatedBy: "owner",
	})

	svc := service.NewAccessService(store)

	decision, err := svc.CheckAccess(context.Background(), link, "")
	require.NoError(t, err)
	assert.Equal(t, service.AccessAllowed, decision)
}

func TestCheckAccessRequiresVerification(t *testing.T) {
	ctx := context.Background()
	store, link, recipient := setupGatedLink(t)

	svc := service.NewAccessService(store)

	// Без почты, с неизвестной почтой и с неподтвержденной — везде верификация
	decision, err := svc.CheckAccess(ctx, link, "")
	require.NoError(t, err)
	assert.Equal(t, service.AccessRequiresVerification, decision)

	decision, err = svc.CheckAccess(ctx, link, "stranger@example.com")
	require.NoError(t, err)
	assert.Equal(t, service.AccessRequiresVerification, decision)

	decision, err = svc.CheckAccess(ctx, link, recipient.Email)
	require.NoError(t, err)
	assert.Equal(t, service.AccessRequiresVerification, decision)
}

func TestVerifyRecipient(t *testing.T) {
	ctx := context.Background()
	store, link, recipient := setupGatedLink(t)

	svc := service.NewAccessService(store)

	// Неверный токен
	err := svc.Verify(ctx, link, recipient.Email, "wrong-token")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	// Неизвестная почта
	err = svc.Verify(ctx, link, "stranger@example.com", "secret-token")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// Успешная верификация открывает доступ
	require.NoError(t, svc.Verify(ctx, link, recipient.Email, "secret-token"))

	decision, err := svc.CheckAccess(ctx, link, recipient.Email)
	require.NoError(t, err)
	assert.Equal(t, service.AccessAllowed, decision)

	// Повторная верификация идемпотентна
	require.NoError(t, svc.Verify(ctx, link, recipient.Email, "secret-token"))
}

func TestVerifyRejectsPublicLink(t *testing.T) {
	store := storetest.New()
	asset := newAsset(t, store, "owner")
	link := newLink(t, store, &domain.ShareLink{
		Token:     "open",
		AssetID:   asset.ID,
		CreatedBy: "owner",
	})

	svc := service.NewAccessService(store)

	err := svc.Verify(context.Background(), link, "reader@example.com", "whatever")
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}
