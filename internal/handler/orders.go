package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// GetOrders возвращает историю заказов посетителя, новые первыми.
func (h *Handler) GetOrders(w http.ResponseWriter, r *http.Request) {
	v, ok := visitorFromRequest(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	orders := h.service.Orders(r.Context(), v)
	if len(orders) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

// GetLastPurchase выдаёт только что завершённый заказ один раз.
func (h *Handler) GetLastPurchase(w http.ResponseWriter, r *http.Request) {
	v, ok := visitorFromRequest(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	order, ok, err := h.service.LastPurchase(r.Context(), v)
	if err != nil {
		h.writeError(w, err, "")
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// GetReceipt возвращает чек заказа. Параметр currency переопределяет валюту локали.
func (h *Handler) GetReceipt(w http.ResponseWriter, r *http.Request) {
	v, ok := visitorFromRequest(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	rc, err := h.service.Receipt(r.Context(), v, chi.URLParam(r, "id"), r.URL.Query().Get("currency"))
	if err != nil {
		h.writeError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, rc)
}

// GetReceiptImage отдаёт чек в виде PNG для скачивания.
func (h *Handler) GetReceiptImage(w http.ResponseWriter, r *http.Request) {
	v, ok := visitorFromRequest(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	art, err := h.service.ReceiptImage(r.Context(), v, chi.URLParam(r, "id"), r.URL.Query().Get("currency"))
	if err != nil {
		h.writeError(w, err, "")
		return
	}

	w.Header().Set("Content-Type", art.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+art.Name+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(art.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(art.Data)
}
