package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/mmeshcher/uc-storefront/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware витрины.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api", func(r chi.Router) {
		r.Get("/catalog", h.GetCatalog)
		r.Get("/catalog/{id}", h.GetPackage)

		r.Group(func(r chi.Router) {
			r.Use(h.visitors.Middleware)

			r.Get("/identity", h.GetIdentity)
			r.Put("/identity", h.PutIdentity)
			r.Delete("/identity", h.DeleteIdentity)

			r.Get("/locale", h.GetLocale)
			r.Put("/locale", h.PutLocale)

			r.Route("/checkout", func(r chi.Router) {
				r.Post("/", h.StartCheckout)
				r.Get("/{sid}", h.GetCheckout)
				r.Post("/{sid}/identity", h.VerifyIdentity)
				r.Post("/{sid}/proceed", h.Proceed)
				r.Post("/{sid}/method", h.SelectMethod)
				r.Post("/{sid}/proof", h.AttachProof)
				r.Post("/{sid}/submit", h.Submit)
				r.Post("/{sid}/cancel", h.Cancel)
			})

			r.Get("/orders", h.GetOrders)
			r.Get("/orders/last", h.GetLastPurchase)
			r.Get("/orders/{id}/receipt", h.GetReceipt)
			r.Get("/orders/{id}/receipt.png", h.GetReceiptImage)

			r.Get("/events", h.Events)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
