package handler

import (
	"context"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"time"

	"enablehub/internal/domain"
	"enablehub/internal/service"
	"enablehub/internal/service/s3"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const downloadURLTTL = 15 * time.Minute

// SharePublicHandler обслуживает неаутентифицированные запросы по токену ссылки
type SharePublicHandler struct {
	shareLinks *service.ShareLinkService
	access     *service.AccessService
	events     *service.EventService
	storage    s3.Storage
}

func NewSharePublicHandler(shareLinks *service.ShareLinkService, access *service.AccessService, events *service.EventService, storage s3.Storage) *SharePublicHandler {
	return &SharePublicHandler{
		shareLinks: shareLinks,
		access:     access,
		events:     events,
		storage:    storage,
	}
}

// Публичные представления: содержимое без внутренних ключей хранилища
type publicAssetView struct {
	ID         uuid.UUID         `json:"id"`
	Title      string            `json:"title"`
	SourceType domain.SourceType `json:"source_type"`
}

type publicVersionView struct {
	ID            uuid.UUID `json:"id"`
	VersionNumber int       `json:"version_number"`
	ChangeLog     string    `json:"change_log,omitempty"`
	MIMEType      string    `json:"mime_type"`
	SizeBytes     int64     `json:"size_bytes"`
}

type publicLinkView struct {
	Token         string            `json:"token"`
	AccessMode    domain.AccessMode `json:"access_mode"`
	AllowDownload bool              `json:"allow_download"`
	Pinned        bool              `json:"pinned"`
	ExpiresAt     *time.Time        `json:"expires_at,omitempty"`
}

type resolveResponse struct {
	ShareLink             publicLinkView    `json:"share_link"`
	Asset                 publicAssetView   `json:"asset"`
	Version               publicVersionView `json:"version"`
	NewerVersionAvailable bool              `json:"newer_version_available"`
}

func actorFromRequest(r *http.Request, email string) service.Actor {
	ip := r.Header.Get("X-Real-IP")
	if ip == "" {
		ip = r.Header.Get("X-Forwarded-For")
	}
	if ip == "" {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err == nil {
			ip = host
		} else {
			ip = r.RemoteAddr
		}
	}
	return service.Actor{
		IP:        ip,
		UserAgent: r.UserAgent(),
		Email:     email,
	}
}

// ResolveShareLink обрабатывает GET /s/{token}
func (h *SharePublicHandler) ResolveShareLink(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	resolution, err := h.shareLinks.Resolve(r.Context(), token)
	if err != nil {
		log.Printf("[ResolveShareLink] Resolution failed: %v", err)
		writePublicError(w, err)
		return
	}

	email := r.URL.Query().Get("email")
	decision, err := h.access.CheckAccess(r.Context(), resolution.ShareLink, email)
	if err != nil {
		writePublicError(w, err)
		return
	}

	link := resolution.ShareLink
	linkView := publicLinkView{
		Token:         link.Token,
		AccessMode:    link.AccessMode,
		AllowDownload: link.AllowDownload,
		Pinned:        link.IsPinned(),
		ExpiresAt:     link.ExpiresAt,
	}

	if decision == service.AccessRequiresVerification {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"requires_verification": true,
			"share_link":            linkView,
		})
		return
	}

	// Просмотр фиксируется в фоне, ответ его не ждет
	versionID := resolution.Version.ID
	actor := actorFromRequest(r, email)
	go h.events.Record(context.Background(), link, domain.EventTypeView, &versionID, actor)

	writeJSON(w, http.StatusOK, resolveResponse{
		ShareLink: linkView,
		Asset: publicAssetView{
			ID:         resolution.Asset.ID,
			Title:      resolution.Asset.Title,
			SourceType: resolution.Asset.SourceType,
		},
		Version: publicVersionView{
			ID:            resolution.Version.ID,
			VersionNumber: resolution.Version.VersionNumber,
			ChangeLog:     resolution.Version.ChangeLog,
			MIMEType:      resolution.Version.MIMEType,
			SizeBytes:     resolution.Version.SizeBytes,
		},
		NewerVersionAvailable: resolution.NewerVersionAvailable,
	})
}

type recordEventRequest struct {
	EventType string `json:"event_type"`
	Email     string `json:"email,omitempty"`
}

type recordEventResponse struct {
	EventID     uuid.UUID `json:"event_id"`
	DownloadURL string    `json:"download_url,omitempty"`
}

// RecordEvent обрабатывает POST /s/{token}/events
func (h *SharePublicHandler) RecordEvent(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	var req recordEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}

	eventType := domain.EventType(req.EventType)
	switch eventType {
	case domain.EventTypeView, domain.EventTypeDownload, domain.EventTypeVerify:
	default:
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "unknown event_type")
		return
	}

	resolution, err := h.shareLinks.Resolve(r.Context(), token)
	if err != nil {
		writePublicError(w, err)
		return
	}

	decision, err := h.access.CheckAccess(r.Context(), resolution.ShareLink, req.Email)
	if err != nil {
		writePublicError(w, err)
		return
	}
	if decision == service.AccessRequiresVerification {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "email verification required")
		return
	}

	var downloadURL string
	if eventType == domain.EventTypeDownload {
		if !resolution.ShareLink.AllowDownload {
			writeError(w, http.StatusBadRequest, "BAD_REQUEST", "download is not allowed for this link")
			return
		}
		downloadURL, err = h.storage.PresignDownload(r.Context(), resolution.Version.S3Key, downloadURLTTL)
		if err != nil {
			log.Printf("[RecordEvent] Failed to presign download: %v", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
			return
		}
	}

	versionID := resolution.Version.ID
	event := h.events.Record(r.Context(), resolution.ShareLink, eventType, &versionID, actorFromRequest(r, req.Email))

	writeJSON(w, http.StatusCreated, recordEventResponse{
		EventID:     event.ID,
		DownloadURL: downloadURL,
	})
}

type verifyRequest struct {
	Email             string `json:"email"`
	VerificationToken string `json:"verification_token"`
}

// VerifyRecipient обрабатывает POST /s/{token}/verify
func (h *SharePublicHandler) VerifyRecipient(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}

	// Верификация работает и по протухающей ссылке до полного разбора:
	// достаточно самой записи ссылки
	link, err := h.shareLinks.GetByToken(r.Context(), token)
	if err != nil {
		writePublicError(w, err)
		return
	}

	if err := h.access.Verify(r.Context(), link, req.Email, req.VerificationToken); err != nil {
		log.Printf("[VerifyRecipient] Verification failed for link %s: %v", link.ID, err)
		writePublicError(w, err)
		return
	}

	h.events.Record(r.Context(), link, domain.EventTypeVerify, nil, actorFromRequest(r, req.Email))

	writeJSON(w, http.StatusOK, map[string]bool{"verified": true})
}
