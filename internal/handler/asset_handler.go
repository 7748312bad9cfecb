package handler

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"enablehub/internal/auth"
	"enablehub/internal/domain"
	"enablehub/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type AssetHandler struct {
	assets    *service.AssetService
	lifecycle *service.LifecycleService
}

func NewAssetHandler(assets *service.AssetService, lifecycle *service.LifecycleService) *AssetHandler {
	return &AssetHandler{
		assets:    assets,
		lifecycle: lifecycle,
	}
}

type createAssetRequest struct {
	Title      string            `json:"title"`
	SourceType domain.SourceType `json:"source_type,omitempty"`
}

func (h *AssetHandler) CreateAsset(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.VerifyToken(r)
	if err != nil {
		log.Printf("[CreateAsset] Authentication failed: %v", err)
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized")
		return
	}

	var req createAssetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}

	asset, err := h.assets.CreateAsset(r.Context(), req.Title, userID, req.SourceType)
	if err != nil {
		log.Printf("[CreateAsset] Failed to create asset: %v", err)
		writeDomainError(w, err)
		return
	}

	log.Printf("[CreateAsset] Created asset %s for user %s", asset.ID, userID)
	writeJSON(w, http.StatusCreated, asset)
}

func (h *AssetHandler) GetAsset(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.VerifyToken(r); err != nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized")
		return
	}

	assetID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid asset id")
		return
	}

	asset, err := h.assets.GetAsset(r.Context(), assetID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, asset)
}

func (h *AssetHandler) DeleteAsset(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.VerifyToken(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized")
		return
	}

	assetID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid asset id")
		return
	}

	if err := h.assets.DeleteAsset(r.Context(), assetID, userID); err != nil {
		log.Printf("[DeleteAsset] Failed to delete asset %s: %v", assetID, err)
		writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type createVersionRequest struct {
	S3Key     string     `json:"s3_key"`
	MIMEType  string     `json:"mime_type"`
	SizeBytes int64      `json:"size_bytes"`
	ChangeLog string     `json:"change_log,omitempty"`
	ExpireAt  *time.Time `json:"expire_at,omitempty"`
}

func (h *AssetHandler) CreateVersion(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.VerifyToken(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized")
		return
	}

	assetID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid asset id")
		return
	}

	var req createVersionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}

	version, err := h.assets.CreateDraftVersion(r.Context(), assetID, userID, req.S3Key, req.MIMEType, req.SizeBytes, req.ChangeLog, req.ExpireAt)
	if err != nil {
		log.Printf("[CreateVersion] Failed to create version for asset %s: %v", assetID, err)
		writeDomainError(w, err)
		return
	}

	log.Printf("[CreateVersion] Created version %d of asset %s", version.VersionNumber, assetID)
	writeJSON(w, http.StatusCreated, version)
}

func (h *AssetHandler) ListVersions(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.VerifyToken(r); err != nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized")
		return
	}

	assetID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid asset id")
		return
	}

	versions, err := h.assets.ListVersions(r.Context(), assetID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, versions)
}

type publishRequest struct {
	ChangeLog string `json:"change_log"`
}

func (h *AssetHandler) PublishVersion(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.VerifyToken(r); err != nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized")
		return
	}

	versionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid version id")
		return
	}

	var req publishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}

	version, err := h.lifecycle.PublishNow(r.Context(), versionID, req.ChangeLog)
	if err != nil {
		log.Printf("[PublishVersion] Failed to publish version %s: %v", versionID, err)
		writeDomainError(w, err)
		return
	}

	log.Printf("[PublishVersion] Published version %s (asset %s)", version.ID, version.AssetID)
	writeJSON(w, http.StatusOK, version)
}

type scheduleRequest struct {
	PublishAt time.Time `json:"publish_at"`
}

func (h *AssetHandler) ScheduleVersion(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.VerifyToken(r); err != nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized")
		return
	}

	versionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid version id")
		return
	}

	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}

	version, err := h.lifecycle.Schedule(r.Context(), versionID, req.PublishAt)
	if err != nil {
		log.Printf("[ScheduleVersion] Failed to schedule version %s: %v", versionID, err)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, version)
}

func (h *AssetHandler) UnscheduleVersion(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, domain.VersionStatusDraft, "UnscheduleVersion")
}

func (h *AssetHandler) ExpireVersion(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, domain.VersionStatusExpired, "ExpireVersion")
}

func (h *AssetHandler) ArchiveVersion(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, domain.VersionStatusArchived, "ArchiveVersion")
}

func (h *AssetHandler) transition(w http.ResponseWriter, r *http.Request, target domain.VersionStatus, op string) {
	if _, err := auth.VerifyToken(r); err != nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized")
		return
	}

	versionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid version id")
		return
	}

	version, err := h.lifecycle.Transition(r.Context(), versionID, target)
	if err != nil {
		log.Printf("[%s] Failed for version %s: %v", op, versionID, err)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, version)
}
