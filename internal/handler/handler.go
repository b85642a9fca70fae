// Package handler содержит HTTP-обработчики API витрины.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/mmeshcher/uc-storefront/internal/catalog"
	"github.com/mmeshcher/uc-storefront/internal/checkout"
	"github.com/mmeshcher/uc-storefront/internal/history"
	"github.com/mmeshcher/uc-storefront/internal/locale"
	"github.com/mmeshcher/uc-storefront/internal/middleware"
	"github.com/mmeshcher/uc-storefront/internal/model"
	"github.com/mmeshcher/uc-storefront/internal/proof"
	"github.com/mmeshcher/uc-storefront/internal/receipt"
	"github.com/mmeshcher/uc-storefront/internal/service"
	"github.com/mmeshcher/uc-storefront/internal/validation"
)

// Service определяет контракт операций витрины, используемых HTTP-обработчиками.
type Service interface {
	Catalog() []model.Package
	Package(id string) (model.Package, error)

	GetIdentity(ctx context.Context, v service.Visitor) (model.Identity, bool)
	SetIdentity(ctx context.Context, v service.Visitor, playerID, username string) (model.Identity, error)
	ClearIdentity(ctx context.Context, v service.Visitor) error

	GetLocale(ctx context.Context, v service.Visitor) model.LocaleSelection
	SetLocale(ctx context.Context, v service.Visitor, sel model.LocaleSelection) (model.LocaleSelection, error)

	StartCheckout(ctx context.Context, v service.Visitor, packageID string) (checkout.Session, error)
	GetCheckout(ctx context.Context, v service.Visitor, sessionID string) (checkout.Session, error)
	VerifyIdentity(ctx context.Context, v service.Visitor, sessionID, playerID, username string) (checkout.Session, error)
	Proceed(ctx context.Context, v service.Visitor, sessionID string) (checkout.Session, error)
	SelectMethod(ctx context.Context, v service.Visitor, sessionID string, m model.PaymentMethod) (checkout.Session, error)
	AttachProof(ctx context.Context, v service.Visitor, sessionID string, a proof.Artifact) (checkout.Session, error)
	Submit(ctx context.Context, v service.Visitor, sessionID string) (checkout.Session, error)
	Cancel(ctx context.Context, v service.Visitor, sessionID string) (checkout.Session, error)

	Orders(ctx context.Context, v service.Visitor) []model.PurchaseOrder
	LastPurchase(ctx context.Context, v service.Visitor) (model.PurchaseOrder, bool, error)
	Receipt(ctx context.Context, v service.Visitor, orderID, currencyCode string) (receipt.Receipt, error)
	ReceiptImage(ctx context.Context, v service.Visitor, orderID, currencyCode string) (proof.Artifact, error)

	Subscribe(v service.Visitor, fn func(service.Event)) (unsubscribe func())
}

// Handler реализует HTTP-обработчики API витрины.
type Handler struct {
	service  Service
	logger   *zap.Logger
	visitors *middleware.VisitorMiddleware

	// streamsDone закрывается при остановке сервера и завершает потоки событий.
	streamsDone chan struct{}
	closeOnce   sync.Once
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, visitors *middleware.VisitorMiddleware) *Handler {
	return &Handler{
		service:     s,
		logger:      logger,
		visitors:    visitors,
		streamsDone: make(chan struct{}),
	}
}

// CloseStreams завершает открытые потоки событий, чтобы остановка сервера не ждала их.
// Регистрируется через http.Server.RegisterOnShutdown.
func (h *Handler) CloseStreams() {
	h.closeOnce.Do(func() { close(h.streamsDone) })
}

type errorResponse struct {
	Error    string `json:"error"`
	Message  string `json:"message"`
	Redirect string `json:"redirect,omitempty"`
}

func visitorFromRequest(r *http.Request) (service.Visitor, bool) {
	id, ok := middleware.VisitorIDFromContext(r.Context())
	if !ok {
		return service.Visitor{}, false
	}
	return service.Visitor{ID: id, Tab: middleware.TabIDFromContext(r.Context())}, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError отображает доменные ошибки на HTTP-статусы.
func (h *Handler) writeError(w http.ResponseWriter, err error, redirect string) {
	status, code := classify(err)

	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", zap.Error(err))
		writeJSON(w, status, errorResponse{Error: code, Message: http.StatusText(status)})
		return
	}

	if status == http.StatusNotFound && errors.Is(err, catalog.ErrPackageNotFound) && redirect == "" {
		redirect = checkout.RedirectHome
	}

	writeJSON(w, status, errorResponse{Error: code, Message: err.Error(), Redirect: redirect})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, validation.ErrInvalidPlayerID):
		return http.StatusUnprocessableEntity, "InvalidPlayerId"
	case errors.Is(err, validation.ErrInvalidUsername):
		return http.StatusUnprocessableEntity, "InvalidUsername"
	case errors.Is(err, checkout.ErrProofRequired):
		return http.StatusUnprocessableEntity, "ProofRequired"
	case errors.Is(err, checkout.ErrMethodUnavailable):
		return http.StatusUnprocessableEntity, "MethodUnavailable"
	case errors.Is(err, checkout.ErrUnknownMethod):
		return http.StatusUnprocessableEntity, "UnknownMethod"
	case proof.IsValidation(err):
		return http.StatusUnprocessableEntity, "InvalidProof"
	case errors.Is(err, locale.ErrInvalidLocale):
		return http.StatusUnprocessableEntity, "InvalidLocale"
	case errors.Is(err, catalog.ErrPackageNotFound):
		return http.StatusNotFound, "PackageNotFound"
	case errors.Is(err, checkout.ErrSessionNotFound):
		return http.StatusNotFound, "SessionNotFound"
	case errors.Is(err, history.ErrOrderNotFound):
		return http.StatusNotFound, "OrderNotFound"
	case errors.Is(err, checkout.ErrIdentityRequired):
		return http.StatusConflict, "IdentityRequired"
	case errors.Is(err, checkout.ErrNotCancellable):
		return http.StatusConflict, "NotCancellable"
	case errors.Is(err, checkout.ErrInvalidTransition):
		return http.StatusConflict, "InvalidTransition"
	}
	return http.StatusInternalServerError, "StorageError"
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "BadRequest", Message: "malformed JSON body"})
		return false
	}
	return true
}
