package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/uc-storefront/internal/service"
)

const (
	eventBuffer       = 16
	keepAliveInterval = 15 * time.Second
)

// Events отдаёт поток server-sent events со сменами локали и истории заказов посетителя.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	v, ok := visitorFromRequest(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	events := make(chan service.Event, eventBuffer)
	// Наблюдатель вызывается синхронно из записи в хранилище, поэтому блокироваться не должен.
	unsubscribe := h.service.Subscribe(v, func(e service.Event) {
		select {
		case events <- e:
		default:
			h.logger.Warn("drop event for slow stream", zap.String("visitor", v.ID), zap.String("kind", string(e.Kind)))
		}
	})
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, service.Event{Kind: service.EventLocale, Payload: h.service.GetLocale(r.Context(), v)}); err != nil {
		return
	}
	flusher.Flush()

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-h.streamsDone:
			return
		case e := <-events:
			if err := writeEvent(w, e); err != nil {
				return
			}
			flusher.Flush()
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, e service.Event) error {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Kind, payload)
	return err
}
