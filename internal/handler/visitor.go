package handler

import (
	"net/http"

	"github.com/mmeshcher/uc-storefront/internal/model"
)

type identityRequest struct {
	PlayerID string `json:"playerId"`
	Username string `json:"username"`
}

// GetIdentity возвращает подтверждённого игрока или 204, если его нет.
func (h *Handler) GetIdentity(w http.ResponseWriter, r *http.Request) {
	v, ok := visitorFromRequest(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	identity, ok := h.service.GetIdentity(r.Context(), v)
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, identity)
}

// PutIdentity сохраняет игрока.
func (h *Handler) PutIdentity(w http.ResponseWriter, r *http.Request) {
	v, ok := visitorFromRequest(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req identityRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	identity, err := h.service.SetIdentity(r.Context(), v, req.PlayerID, req.Username)
	if err != nil {
		h.writeError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, identity)
}

// DeleteIdentity удаляет игрока.
func (h *Handler) DeleteIdentity(w http.ResponseWriter, r *http.Request) {
	v, ok := visitorFromRequest(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	if err := h.service.ClearIdentity(r.Context(), v); err != nil {
		h.writeError(w, err, "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetLocale возвращает выбранную локаль.
func (h *Handler) GetLocale(w http.ResponseWriter, r *http.Request) {
	v, ok := visitorFromRequest(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, h.service.GetLocale(r.Context(), v))
}

// PutLocale меняет локаль и оповещает все открытые представления посетителя.
func (h *Handler) PutLocale(w http.ResponseWriter, r *http.Request) {
	v, ok := visitorFromRequest(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req model.LocaleSelection
	if !decodeJSON(w, r, &req) {
		return
	}

	sel, err := h.service.SetLocale(r.Context(), v, req)
	if err != nil {
		h.writeError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, sel)
}
