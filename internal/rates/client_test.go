package rates

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_GetRates(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/rates", r.URL.Path)
		assert.Equal(t, Base, r.URL.Query().Get("base"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"base":"USD","rates":{"PKR":"280.10","EUR":0.93}}`))
	}))
	defer ts.Close()

	snap, err := NewClient(ts.URL).GetRates(context.Background())
	require.NoError(t, err)
	assert.True(t, snap.Rates["PKR"].Equal(decimal.RequireFromString("280.10")))
	assert.True(t, snap.Rates["EUR"].Equal(decimal.RequireFromString("0.93")))
}

func TestClient_GetRatesErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		check   func(t *testing.T, err error)
	}{
		{
			name: "rate limited",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Retry-After", "5")
				w.WriteHeader(http.StatusTooManyRequests)
			},
			check: func(t *testing.T, err error) {
				var limited *RateLimitedError
				require.True(t, errors.As(err, &limited))
				assert.Equal(t, 5*time.Second, limited.RetryAfter)
			},
		},
		{
			name: "no content",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrNoRates)
			},
		},
		{
			name: "wrong base",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"base":"EUR","rates":{"USD":1.08}}`))
			},
			check: func(t *testing.T, err error) {
				assert.ErrorContains(t, err, "EUR")
			},
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
			check: func(t *testing.T, err error) {
				assert.ErrorContains(t, err, "502")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(tt.handler)
			defer ts.Close()

			snap, err := NewClient(ts.URL).GetRates(context.Background())
			require.Error(t, err)
			assert.Nil(t, snap)
			tt.check(t, err)
		})
	}
}

func TestClient_NotConfigured(t *testing.T) {
	_, err := NewClient("  ").GetRates(context.Background())
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		value string
		want  time.Duration
	}{
		{"", 0},
		{"7", 7 * time.Second},
		{"-3", 0},
		{now.Add(30 * time.Second).Format(http.TimeFormat), 30 * time.Second},
		{now.Add(-time.Minute).Format(http.TimeFormat), 0},
		{"soon", 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, parseRetryAfter(tt.value, now), "value %q", tt.value)
	}
}

type stubSource struct {
	mu        sync.Mutex
	responses []stubResponse
	calls     int
}

type stubResponse struct {
	snap *Snapshot
	err  error
}

func (s *stubSource) GetRates(context.Context) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.responses[s.calls%len(s.responses)]
	s.calls++
	return r.snap, r.err
}

type stubSink struct {
	got map[string]decimal.Decimal
}

func (s *stubSink) SetRates(rates map[string]decimal.Decimal) int {
	s.got = rates
	return len(rates)
}

func TestRefresher_RetriesAfterRateLimit(t *testing.T) {
	source := &stubSource{responses: []stubResponse{
		{err: &RateLimitedError{RetryAfter: time.Millisecond}},
		{snap: &Snapshot{Rates: map[string]decimal.Decimal{"PKR": decimal.NewFromInt(280)}}},
	}}
	sink := &stubSink{}

	NewRefresher(source, sink, time.Hour, nil).refresh(context.Background())

	assert.Equal(t, 2, source.calls)
	assert.True(t, sink.got["PKR"].Equal(decimal.NewFromInt(280)))
}

func TestRefresher_KeepsRatesOnFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"no rates", ErrNoRates},
		{"transport", errors.New("connection refused")},
		{"limited without hint", &RateLimitedError{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := &stubSource{responses: []stubResponse{{err: tt.err}}}
			sink := &stubSink{}

			NewRefresher(source, sink, time.Hour, nil).refresh(context.Background())

			assert.Equal(t, 1, source.calls)
			assert.Nil(t, sink.got)
		})
	}
}

func TestRefresher_RunStopsOnCancel(t *testing.T) {
	source := &stubSource{responses: []stubResponse{{err: ErrNoRates}}}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- NewRefresher(source, &stubSink{}, time.Hour, nil).Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}
