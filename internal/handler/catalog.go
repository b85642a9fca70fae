package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// GetCatalog возвращает все пакеты.
func (h *Handler) GetCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.Catalog())
}

// GetPackage возвращает один пакет. Неизвестный пакет перенаправляет на главную.
func (h *Handler) GetPackage(w http.ResponseWriter, r *http.Request) {
	pkg, err := h.service.Package(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, pkg)
}
