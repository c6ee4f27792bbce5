package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ClientIDContextKey is the key for storing the client ID in context
	ClientIDContextKey ContextKey = "clientID"
	// RequestIDContextKey is the key for storing the request ID in context
	RequestIDContextKey ContextKey = "requestID"
)

// ClientCookieName names the cookie that identifies a browser across requests
const ClientCookieName = "flowkh_client"

const clientCookieMaxAge = 365 * 24 * 60 * 60

// ClientID makes sure every request carries an anonymous client ID. A missing
// or malformed cookie is replaced by a fresh one.
func ClientID(isProduction bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var clientID uuid.UUID
			if cookie, err := r.Cookie(ClientCookieName); err == nil {
				if id, err := uuid.Parse(cookie.Value); err == nil {
					clientID = id
				}
			}

			if clientID == uuid.Nil {
				clientID = uuid.New()
				http.SetCookie(w, &http.Cookie{
					Name:     ClientCookieName,
					Value:    clientID.String(),
					Path:     "/",
					MaxAge:   clientCookieMaxAge,
					HttpOnly: true,
					Secure:   isProduction,
					SameSite: http.SameSiteLaxMode,
				})
			}

			ctx := context.WithValue(r.Context(), ClientIDContextKey, clientID.String())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetClientIDFromContext retrieves the client ID from request context
func GetClientIDFromContext(ctx context.Context) (string, bool) {
	clientID, ok := ctx.Value(ClientIDContextKey).(string)
	return clientID, ok
}

// GetRequestIDFromContext retrieves the request ID from request context
func GetRequestIDFromContext(ctx context.Context) (string, bool) {
	requestID, ok := ctx.Value(RequestIDContextKey).(string)
	return requestID, ok
}
