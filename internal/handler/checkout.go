package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/uc-storefront/internal/checkout"
	"github.com/mmeshcher/uc-storefront/internal/model"
	"github.com/mmeshcher/uc-storefront/internal/proof"
)

type startCheckoutRequest struct {
	PackageID string `json:"packageId"`
}

type methodRequest struct {
	Method model.PaymentMethod `json:"method"`
}

// writeSession отвечает снимком сессии либо ошибкой с перенаправлением из снимка.
func (h *Handler) writeSession(w http.ResponseWriter, sess checkout.Session, err error, status int) {
	if err != nil {
		h.writeError(w, err, sess.Redirect)
		return
	}
	writeJSON(w, status, sess)
}

// StartCheckout открывает сессию покупки пакета.
func (h *Handler) StartCheckout(w http.ResponseWriter, r *http.Request) {
	v, ok := visitorFromRequest(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req startCheckoutRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	sess, err := h.service.StartCheckout(r.Context(), v, req.PackageID)
	h.writeSession(w, sess, err, http.StatusCreated)
}

// GetCheckout возвращает состояние сессии.
func (h *Handler) GetCheckout(w http.ResponseWriter, r *http.Request) {
	v, ok := visitorFromRequest(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	sess, err := h.service.GetCheckout(r.Context(), v, chi.URLParam(r, "sid"))
	h.writeSession(w, sess, err, http.StatusOK)
}

// VerifyIdentity сохраняет игрока в рамках сессии.
func (h *Handler) VerifyIdentity(w http.ResponseWriter, r *http.Request) {
	v, ok := visitorFromRequest(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req identityRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	sess, err := h.service.VerifyIdentity(r.Context(), v, chi.URLParam(r, "sid"), req.PlayerID, req.Username)
	h.writeSession(w, sess, err, http.StatusOK)
}

// Proceed переходит к оплате, если игрок уже подтверждён.
func (h *Handler) Proceed(w http.ResponseWriter, r *http.Request) {
	v, ok := visitorFromRequest(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	sess, err := h.service.Proceed(r.Context(), v, chi.URLParam(r, "sid"))
	h.writeSession(w, sess, err, http.StatusOK)
}

// SelectMethod выбирает способ оплаты.
func (h *Handler) SelectMethod(w http.ResponseWriter, r *http.Request) {
	v, ok := visitorFromRequest(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req methodRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	sess, err := h.service.SelectMethod(r.Context(), v, chi.URLParam(r, "sid"), req.Method)
	h.writeSession(w, sess, err, http.StatusOK)
}

// AttachProof принимает подтверждение оплаты в поле формы "file".
func (h *Handler) AttachProof(w http.ResponseWriter, r *http.Request) {
	v, ok := visitorFromRequest(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, proof.MaxSize+1<<20)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, proof.ErrTooLarge, "")
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "BadRequest", Message: "multipart field \"file\" is required"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, proof.MaxSize+1))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "BadRequest", Message: "cannot read uploaded file"})
		return
	}

	artifact := proof.Artifact{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}

	sess, err := h.service.AttachProof(r.Context(), v, chi.URLParam(r, "sid"), artifact)
	h.writeSession(w, sess, err, http.StatusOK)
}

// Submit отправляет оплату на обработку. Ответ 202 означает, что обработка началась.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	v, ok := visitorFromRequest(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	sess, err := h.service.Submit(r.Context(), v, chi.URLParam(r, "sid"))
	status := http.StatusAccepted
	if sess.Phase == model.PhaseFinalized {
		status = http.StatusOK
	}
	h.writeSession(w, sess, err, status)
}

// Cancel прерывает сессию.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	v, ok := visitorFromRequest(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	sess, err := h.service.Cancel(r.Context(), v, chi.URLParam(r, "sid"))
	h.writeSession(w, sess, err, http.StatusOK)
}
