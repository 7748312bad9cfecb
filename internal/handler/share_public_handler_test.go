package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"enablehub/internal/domain"
	"enablehub/internal/handler"
	"enablehub/internal/service"
	"enablehub/internal/service/s3"
	"enablehub/internal/storetest"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStorage struct {
	presignURL string
	presignErr error
}

func (s *stubStorage) UploadBytes(key string, data []byte) error { return nil }

func (s *stubStorage) GetObject(ctx context.Context, key string) (s3.S3Object, error) {
	return nil, errors.New("not implemented")
}

func (s *stubStorage) DeleteObject(key string) error { return nil }

func (s *stubStorage) PresignDownload(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return s.presignURL, s.presignErr
}

type fixture struct {
	store  *storetest.Store
	router chi.Router
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := storetest.New()

	shareLinks := service.NewShareLinkService(store, store)
	access := service.NewAccessService(store)
	events := service.NewEventService(store)
	storage := &stubStorage{presignURL: "https://s3.example.com/signed"}

	h := handler.NewSharePublicHandler(shareLinks, access, events, storage)

	r := chi.NewRouter()
	r.Route("/s/{token}", func(r chi.Router) {
		r.Get("/", h.ResolveShareLink)
		r.Post("/events", h.RecordEvent)
		r.Post("/verify", h.VerifyRecipient)
	})

	return &fixture{store: store, router: r}
}

func (f *fixture) seedPublishedAsset(t *testing.T) (*domain.Asset, *domain.AssetVersion) {
	t.Helper()
	ctx := context.Background()
	asset := &domain.Asset{ID: uuid.New(), Title: "launch deck", OwnerID: "owner", SourceType: domain.SourceTypeUpload}
	require.NoError(t, f.store.CreateAsset(ctx, asset))

	version := &domain.AssetVersion{ID: uuid.New(), AssetID: asset.ID, S3Key: "content_assets/deck", MIMEType: "application/pdf"}
	require.NoError(t, f.store.CreateDraft(ctx, version))
	require.NoError(t, f.store.PromoteVersion(ctx, version.ID, domain.VersionStatusDraft, "release"))
	return asset, version
}

func (f *fixture) seedLink(t *testing.T, link *domain.ShareLink) *domain.ShareLink {
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
	require.NoError(t, f.store.CreateShareLink(context.Background(), link))
	return link
}

func (f *fixture) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) (string, string) {
	t.Helper()
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error.Code, body.Error.Message
}

func TestResolveUnknownTokenReturns404(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/s/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	code, _ := errorCode(t, rec)
	assert.Equal(t, "NOT_FOUND", code)
}

func TestResolveReturnsPublicViewWithoutStorageKey(t *testing.T) {
	f := newFixture(t)
	asset, version := f.seedPublishedAsset(t)
	f.seedLink(t, &domain.ShareLink{Token: "tok", AssetID: asset.ID, AllowDownload: true, CreatedBy: "owner"})

	rec := f.do(http.MethodGet, "/s/tok", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.NotContains(t, rec.Body.String(), version.S3Key)

	var body struct {
		ShareLink struct {
			Token         string `json:"token"`
			AllowDownload bool   `json:"allow_download"`
			Pinned        bool   `json:"pinned"`
		} `json:"share_link"`
		Asset struct {
			Title string `json:"title"`
		} `json:"asset"`
		Version struct {
			VersionNumber int `json:"version_number"`
		} `json:"version"`
		NewerVersionAvailable bool `json:"newer_version_available"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "tok", body.ShareLink.Token)
	assert.True(t, body.ShareLink.AllowDownload)
	assert.False(t, body.ShareLink.Pinned)
	assert.Equal(t, "launch deck", body.Asset.Title)
	assert.Equal(t, 1, body.Version.VersionNumber)
	assert.False(t, body.NewerVersionAvailable)
}

func TestResolveDistinguishesFailureMessages(t *testing.T) {
	f := newFixture(t)
	asset, _ := f.seedPublishedAsset(t)

	past := time.Now().Add(-time.Hour)
	f.seedLink(t, &domain.ShareLink{Token: "revoked", AssetID: asset.ID, Status: domain.ShareLinkStatusRevoked, CreatedBy: "owner"})
	f.seedLink(t, &domain.ShareLink{Token: "stale", AssetID: asset.ID, ExpiresAt: &past, CreatedBy: "owner"})

	rec := f.do(http.MethodGet, "/s/revoked", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	code, message := errorCode(t, rec)
	assert.Equal(t, "NOT_FOUND", code)
	assert.Equal(t, "link revoked", message)

	rec = f.do(http.MethodGet, "/s/stale", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	code, message = errorCode(t, rec)
	assert.Equal(t, "NOT_FOUND", code)
	assert.Equal(t, "link expired", message)
}

func TestResolveEmailVerifyWithoutEmail(t *testing.T) {
	f := newFixture(t)
	asset, _ := f.seedPublishedAsset(t)
	f.seedLink(t, &domain.ShareLink{Token: "gated", AssetID: asset.ID, AccessMode: domain.AccessModeEmailVerify, CreatedBy: "owner"})

	rec := f.do(http.MethodGet, "/s/gated", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["requires_verification"])
	assert.Contains(t, body, "share_link")
	// Содержимое не отдается до верификации
	assert.NotContains(t, body, "version")
}

func TestRecordDownloadEvent(t *testing.T) {
	f := newFixture(t)
	asset, _ := f.seedPublishedAsset(t)
	f.seedLink(t, &domain.ShareLink{Token: "dl", AssetID: asset.ID, AllowDownload: true, CreatedBy: "owner"})

	rec := f.do(http.MethodPost, "/s/dl/events", map[string]string{"event_type": "download"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var body struct {
		EventID     uuid.UUID `json:"event_id"`
		DownloadURL string    `json:"download_url"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEqual(t, uuid.Nil, body.EventID)
	assert.Equal(t, "https://s3.example.com/signed", body.DownloadURL)

	events := f.store.Events()
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventTypeDownload, events[0].EventType)
}

func TestRecordDownloadRejectedWhenDisallowed(t *testing.T) {
	f := newFixture(t)
	asset, _ := f.seedPublishedAsset(t)
	f.seedLink(t, &domain.ShareLink{Token: "nodl", AssetID: asset.ID, AllowDownload: false, CreatedBy: "owner"})

	rec := f.do(http.MethodPost, "/s/nodl/events", map[string]string{"event_type": "download"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	code, _ := errorCode(t, rec)
	assert.Equal(t, "BAD_REQUEST", code)
	assert.Empty(t, f.store.Events())
}

func TestRecordEventUnknownType(t *testing.T) {
	f := newFixture(t)
	asset, _ := f.seedPublishedAsset(t)
	f.seedLink(t, &domain.ShareLink{Token: "tok", AssetID: asset.ID, CreatedBy: "owner"})

	rec := f.do(http.MethodPost, "/s/tok/events", map[string]string{"event_type": "teleport"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVerifyRecipientFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	asset, _ := f.seedPublishedAsset(t)
	link := f.seedLink(t, &domain.ShareLink{Token: "gated", AssetID: asset.ID, AccessMode: domain.AccessModeEmailVerify, CreatedBy: "owner"})

	require.NoError(t, f.store.AddRecipient(ctx, &domain.ShareRecipient{
		ShareLinkID:       link.ID,
		Email:             "reader@example.com",
		VerificationToken: "secret",
	}))

	// Неверный токен
	rec := f.do(http.MethodPost, "/s/gated/verify", map[string]string{
		"email":              "reader@example.com",
		"verification_token": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Успешная верификация
	rec = f.do(http.MethodPost, "/s/gated/verify", map[string]string{
		"email":              "reader@example.com",
		"verification_token": "secret",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// Теперь контент доступен по почте
	rec = f.do(http.MethodGet, "/s/gated?email=reader%40example.com", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "version_number")

	// Каждый успешный вызов верификации дает ровно одно событие
	countVerify := func() int {
		n := 0
		for _, e := range f.store.Events() {
			if e.EventType == domain.EventTypeVerify {
				n++
			}
		}
		return n
	}
	verifyEvents := countVerify()
	assert.Equal(t, 1, verifyEvents)

	// Повторная верификация идемпотентна, но аудит фиксирует и ее
	rec = f.do(http.MethodPost, "/s/gated/verify", map[string]string{
		"email":              "reader@example.com",
		"verification_token": "secret",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, verifyEvents+1, countVerify())
}
