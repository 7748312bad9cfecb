package handler

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"enablehub/internal/auth"
	"enablehub/internal/domain"
	"enablehub/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type ShareAdminHandler struct {
	shareLinks *service.ShareLinkService
	baseURL    string
}

func NewShareAdminHandler(shareLinks *service.ShareLinkService, baseURL string) *ShareAdminHandler {
	return &ShareAdminHandler{
		shareLinks: shareLinks,
		baseURL:    baseURL,
	}
}

type createShareLinkRequest struct {
	AssetID         uuid.UUID         `json:"asset_id"`
	VersionID       *uuid.UUID        `json:"version_id,omitempty"`
	ExpiresIn       *int64            `json:"expires_in,omitempty"`
	ExpireWithAsset bool              `json:"expire_with_asset,omitempty"`
	AccessMode      domain.AccessMode `json:"access_mode,omitempty"`
	AllowDownload   *bool             `json:"allow_download,omitempty"`
}

func (h *ShareAdminHandler) CreateShareLink(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.VerifyToken(r)
	if err != nil {
		log.Printf("[CreateShareLink] Authentication failed: %v", err)
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized")
		return
	}

	var req createShareLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}

	var expiresIn *time.Duration
	if req.ExpiresIn != nil {
		duration := time.Duration(*req.ExpiresIn) * time.Second
		expiresIn = &duration
	}

	allowDownload := true
	if req.AllowDownload != nil {
		allowDownload = *req.AllowDownload
	}

	link, err := h.shareLinks.CreateShareLink(r.Context(), service.CreateShareLinkInput{
		AssetID:         req.AssetID,
		VersionID:       req.VersionID,
		ExpiresIn:       expiresIn,
		ExpireWithAsset: req.ExpireWithAsset,
		AccessMode:      req.AccessMode,
		AllowDownload:   allowDownload,
		CreatedBy:       userID,
	})
	if err != nil {
		log.Printf("[CreateShareLink] Failed to create share link: %v", err)
		writeDomainError(w, err)
		return
	}

	response := struct {
		*domain.ShareLink
		URL string `json:"url"`
	}{
		ShareLink: link,
		URL:       h.baseURL + "/s/" + link.Token,
	}

	log.Printf("[CreateShareLink] Created share link %s for asset %s", link.ID, link.AssetID)
	writeJSON(w, http.StatusCreated, response)
}

func (h *ShareAdminHandler) RevokeShareLink(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.VerifyToken(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized")
		return
	}

	linkID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid share link id")
		return
	}

	if err := h.shareLinks.Revoke(r.Context(), linkID, userID); err != nil {
		log.Printf("[RevokeShareLink] Failed to revoke link %s: %v", linkID, err)
		writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type inviteRecipientRequest struct {
	Email string `json:"email"`
}

func (h *ShareAdminHandler) InviteRecipient(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.VerifyToken(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized")
		return
	}

	linkID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid share link id")
		return
	}

	var req inviteRecipientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}

	recipient, err := h.shareLinks.InviteRecipient(r.Context(), linkID, userID, req.Email)
	if err != nil {
		log.Printf("[InviteRecipient] Failed to invite %s to link %s: %v", req.Email, linkID, err)
		writeDomainError(w, err)
		return
	}

	// Токен верификации уходит получателю почтой; владельцу он возвращается
	// один раз в ответе приглашения
	response := struct {
		ID                int64  `json:"id"`
		Email             string `json:"email"`
		VerificationToken string `json:"verification_token"`
	}{
		ID:                recipient.ID,
		Email:             recipient.Email,
		VerificationToken: recipient.VerificationToken,
	}

	writeJSON(w, http.StatusCreated, response)
}

func (h *ShareAdminHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.VerifyToken(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized")
		return
	}

	linkID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid share link id")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}

	events, err := h.shareLinks.ListEvents(r.Context(), linkID, userID, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, events)
}
