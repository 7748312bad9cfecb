package preview

import (
	"fmt"
	"log"
	"net/http"

	"enablehub/internal/service"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	service    *Service
	shareLinks *service.ShareLinkService
	access     *service.AccessService
}

func NewHandler(previewService *Service, shareLinks *service.ShareLinkService, access *service.AccessService) *Handler {
	return &Handler{
		service:    previewService,
		shareLinks: shareLinks,
		access:     access,
	}
}

// GetPreview отдает превью версии, на которую указывает публичная ссылка
func (h *Handler) GetPreview(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if token == "" {
		http.Error(w, "Token is required", http.StatusBadRequest)
		return
	}

	resolution, err := h.shareLinks.Resolve(r.Context(), token)
	if err != nil {
		log.Printf("[Preview] Failed to resolve token: %v", err)
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	// Превью — это уже содержимое версии, поэтому действует та же проверка
	// доступа, что и при выдаче основного ответа
	decision, err := h.access.CheckAccess(r.Context(), resolution.ShareLink, r.URL.Query().Get("email"))
	if err != nil {
		log.Printf("[Preview] Access check failed: %v", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if decision == service.AccessRequiresVerification {
		http.Error(w, "Email verification required", http.StatusUnauthorized)
		return
	}

	previewData, err := h.service.GetOrGeneratePreview(r.Context(), resolution.Version)
	if err != nil {
		log.Printf("[Preview] Failed to generate preview: %v", err)
		http.Error(w, fmt.Sprintf("Failed to generate preview: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "public, max-age=86400") // кешируем на 24 часа

	w.WriteHeader(http.StatusOK)
	w.Write(previewData)
}
