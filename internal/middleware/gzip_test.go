package middleware

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoHandler отвечает телом запроса с заданными типом и статусом.
func echoHandler(contentType string, status int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		defer r.Body.Close()

		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(status)
		if status != http.StatusNoContent {
			_, _ = w.Write(body)
		}
	}
}

func TestGzipMiddleware(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		gzipRequest    bool
		acceptEncoding string
		contentType    string
		status         int
		wantEncoding   string
	}{
		{
			name:           "json catalog is compressed",
			body:           `[{"id":"60uc","game":"pubg"}]`,
			acceptEncoding: "gzip",
			contentType:    "application/json",
			status:         http.StatusOK,
			wantEncoding:   "gzip",
		},
		{
			name:           "client without gzip gets plain json",
			body:           `{"playerId":"12345678"}`,
			contentType:    "application/json",
			status:         http.StatusOK,
			wantEncoding:   "",
		},
		{
			name:           "compressed identity request is decoded",
			body:           `{"playerId":"12345678","username":"Ali"}`,
			gzipRequest:    true,
			acceptEncoding: "gzip",
			contentType:    "application/json; charset=utf-8",
			status:         http.StatusOK,
			wantEncoding:   "gzip",
		},
		{
			name:           "receipt image is not compressed",
			body:           "\x89PNG",
			acceptEncoding: "gzip",
			contentType:    "image/png",
			status:         http.StatusOK,
			wantEncoding:   "",
		},
		{
			name:           "event stream is not compressed",
			body:           "event: locale\ndata: {}\n\n",
			acceptEncoding: "gzip",
			contentType:    "text/event-stream",
			status:         http.StatusOK,
			wantEncoding:   "",
		},
		{
			name:           "empty orders stay empty",
			acceptEncoding: "gzip",
			contentType:    "application/json",
			status:         http.StatusNoContent,
			wantEncoding:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var requestBody io.Reader = strings.NewReader(tt.body)
			if tt.gzipRequest {
				var buf bytes.Buffer
				gz := gzip.NewWriter(&buf)
				_, err := gz.Write([]byte(tt.body))
				require.NoError(t, err)
				require.NoError(t, gz.Close())
				requestBody = &buf
			}

			req := httptest.NewRequest(http.MethodPost, "/api/identity", requestBody)
			if tt.gzipRequest {
				req.Header.Set("Content-Encoding", "gzip")
			}
			if tt.acceptEncoding != "" {
				req.Header.Set("Accept-Encoding", tt.acceptEncoding)
			}

			rec := httptest.NewRecorder()
			GzipMiddleware(echoHandler(tt.contentType, tt.status)).ServeHTTP(rec, req)

			res := rec.Result()
			defer res.Body.Close()

			require.Equal(t, tt.status, res.StatusCode)
			assert.Equal(t, tt.wantEncoding, res.Header.Get("Content-Encoding"))

			var reader io.Reader = res.Body
			if tt.wantEncoding == "gzip" {
				gr, err := gzip.NewReader(res.Body)
				require.NoError(t, err)
				defer gr.Close()
				reader = gr
			}

			body, err := io.ReadAll(reader)
			require.NoError(t, err)
			assert.Equal(t, tt.body, string(body))
		})
	}
}
