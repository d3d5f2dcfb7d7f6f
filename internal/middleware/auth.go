// Package middleware содержит HTTP middleware сервиса учёта ОП.
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

	"github.com/mmeshcher/op-system/internal/model"
)

type contextKey string

const sessionKey contextKey = "session"

const (
	authCookieName = "auth_token"
	authCookieTTL  = 30 * 24 * time.Hour
)

// Session описывает авторизованного пользователя панели.
type Session struct {
	User string
	Role model.Role
}

// AuthMiddleware выполняет проверку аутентификации пользователя по подписанному cookie.
type AuthMiddleware struct {
	secretKey []byte
}

// NewAuthMiddleware создаёт новый экземпляр AuthMiddleware с указанным секретным ключом.
func NewAuthMiddleware(secret string) *AuthMiddleware {
	key := []byte(secret)
	if len(key) == 0 {
		randomKey := make([]byte, 32)
		if _, err := rand.Read(randomKey); err == nil {
			key = randomKey
		} else {
			key = []byte("default-secret-key")
		}
	}

	return &AuthMiddleware{
		secretKey: key,
	}
}

// Middleware проверяет cookie авторизации и добавляет сессию пользователя в контекст запроса.
func (a *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(authCookieName)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		session, ok := a.parseCookie(cookie.Value)
		if !ok {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), sessionKey, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole пропускает запрос только при совпадении роли сессии с одной из указанных.
func RequireRole(roles ...model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, ok := SessionFromContext(r.Context())
			if !ok {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			for _, role := range roles {
				if session.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		})
	}
}

// SetAuthCookie устанавливает cookie авторизации для указанной сессии.
func (a *AuthMiddleware) SetAuthCookie(w http.ResponseWriter, session Session) {
	value := a.sign(encodeSession(session))

	cookie := &http.Cookie{
		Name:     authCookieName,
		Value:    value,
		Path:     "/",
		Expires:  time.Now().Add(authCookieTTL),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	http.SetCookie(w, cookie)
}

func encodeSession(session Session) string {
	return session.User + "|" + string(session.Role)
}

func decodeSession(payload string) (Session, bool) {
	user, role, ok := strings.Cut(payload, "|")
	if !ok || user == "" {
		return Session{}, false
	}
	if model.Role(role) != model.RoleOperator && model.Role(role) != model.RoleManager {
		return Session{}, false
	}
	return Session{User: user, Role: model.Role(role)}, true
}

func (a *AuthMiddleware) sign(payload string) string {
	mac := hmac.New(sha256.New, a.secretKey)
	mac.Write([]byte(payload))
	signature := mac.Sum(nil)
	return payload + "." + hex.EncodeToString(signature)
}

func (a *AuthMiddleware) parseCookie(cookieValue string) (Session, bool) {
	idx := strings.LastIndex(cookieValue, ".")
	if idx <= 0 {
		return Session{}, false
	}

	payload := cookieValue[:idx]
	signature := cookieValue[idx+1:]

	expected := a.sign(payload)
	expectedSig := expected[strings.LastIndex(expected, ".")+1:]

	if !hmac.Equal([]byte(signature), []byte(expectedSig)) {
		return Session{}, false
	}

	return decodeSession(payload)
}

// SessionFromContext извлекает сессию пользователя из контекста запроса.
func SessionFromContext(ctx context.Context) (Session, bool) {
	session, ok := ctx.Value(sessionKey).(Session)
	return session, ok
}
