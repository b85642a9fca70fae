// Package middleware содержит HTTP middleware витрины.
package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

type contextKey string

const (
	visitorIDKey contextKey = "visitorID"
	tabIDKey     contextKey = "tabID"
)

const (
	visitorCookieName = "visitor_id"
	visitorCookieTTL  = 365 * 24 * time.Hour

	// TabHeader указывает вкладку, из которой пришёл запрос.
	TabHeader  = "X-Tab-ID"
	DefaultTab = "default"
	maxTabLen  = 64
)

// VisitorMiddleware опознаёт посетителя по подписанному cookie и выдаёт новый cookie при его отсутствии.
type VisitorMiddleware struct {
	secretKey []byte
}

// NewVisitorMiddleware создаёт middleware с указанным секретным ключом.
// Без ключа генерируется случайный, и cookie перестают быть действительными после перезапуска.
func NewVisitorMiddleware(secret string) *VisitorMiddleware {
	key := []byte(secret)
	if len(key) == 0 {
		randomKey := make([]byte, 32)
		if _, err := rand.Read(randomKey); err == nil {
			key = randomKey
		} else {
			key = []byte("default-secret-key")
		}
	}

	return &VisitorMiddleware{
		secretKey: key,
	}
}

// Middleware добавляет в контекст запроса идентификаторы посетителя и вкладки.
func (v *VisitorMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		visitorID := ""
		if cookie, err := r.Cookie(visitorCookieName); err == nil {
			if id, ok := v.parseCookie(cookie.Value); ok {
				visitorID = id
			}
		}

		if visitorID == "" {
			visitorID = uuid.NewString()
			v.SetVisitorCookie(w, visitorID)
		}

		ctx := context.WithValue(r.Context(), visitorIDKey, visitorID)
		ctx = context.WithValue(ctx, tabIDKey, normalizeTab(r.Header.Get(TabHeader)))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SetVisitorCookie устанавливает cookie посетителя.
func (v *VisitorMiddleware) SetVisitorCookie(w http.ResponseWriter, visitorID string) {
	cookie := &http.Cookie{
		Name:     visitorCookieName,
		Value:    v.sign(visitorID),
		Path:     "/",
		Expires:  time.Now().Add(visitorCookieTTL),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	http.SetCookie(w, cookie)
}

func (v *VisitorMiddleware) sign(id string) string {
	mac := hmac.New(sha256.New, v.secretKey)
	mac.Write([]byte(id))
	return id + "." + hex.EncodeToString(mac.Sum(nil))
}

func (v *VisitorMiddleware) parseCookie(cookieValue string) (string, bool) {
	id, signature, ok := strings.Cut(cookieValue, ".")
	if !ok {
		return "", false
	}

	if _, err := uuid.Parse(id); err != nil {
		return "", false
	}

	_, expected, _ := strings.Cut(v.sign(id), ".")
	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return "", false
	}

	return id, true
}

func normalizeTab(tab string) string {
	tab = strings.TrimSpace(tab)
	if tab == "" || len(tab) > maxTabLen {
		return DefaultTab
	}
	for _, r := range tab {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_') {
			return DefaultTab
		}
	}
	return tab
}

// VisitorIDFromContext извлекает идентификатор посетителя из контекста запроса.
func VisitorIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(visitorIDKey).(string)
	return id, ok && id != ""
}

// TabIDFromContext извлекает идентификатор вкладки из контекста запроса.
func TabIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(tabIDKey).(string); ok && id != "" {
		return id
	}
	return DefaultTab
}

// WithVisitor возвращает контекст с заданными посетителем и вкладкой.
func WithVisitor(ctx context.Context, visitorID, tabID string) context.Context {
	ctx = context.WithValue(ctx, visitorIDKey, visitorID)
	return context.WithValue(ctx, tabIDKey, normalizeTab(tabID))
}
