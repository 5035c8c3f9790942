package auth

import (
	"log"
	"net/http"

	"tankbattle-backend/models"
	"tankbattle-backend/registry"
)

// Middleware validates the identity token and confirms the caller has a live
// registered connection before letting an HTTP request through. Used for the
// peer-signaling endpoints, which only make sense for connected players.
func Middleware(reg *registry.Registry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := extractAndValidateToken(r, w)
			if err != nil {
				return
			}

			client, exists := reg.Get(claims.UserID)
			if !exists {
				http.Error(w, "Unauthorized: Player not found or inactive", http.StatusUnauthorized)
				return
			}

			if client.Username != claims.Username {
				http.Error(w, "Unauthorized: Username mismatch", http.StatusUnauthorized)
				return
			}

			r.Header.Set("X-Player-ID", claims.UserID)
			r.Header.Set("X-Username", claims.Username)

			next.ServeHTTP(w, r)
		})
	}
}

// extractTokenFromRequest extracts token from Authorization header or query parameter
func extractTokenFromRequest(r *http.Request, w http.ResponseWriter) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		return authHeader, nil
	}

	// Try to get from query parameter for WebSocket connections
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "Unauthorized: Missing token", http.StatusUnauthorized)
		return "", http.ErrBodyReadAfterClose
	}
	return "Bearer " + token, nil
}

// extractAndValidateToken extracts token from request and validates it
// Returns nil claims and error if validation fails (error already sent to client)
func extractAndValidateToken(r *http.Request, w http.ResponseWriter) (*Claims, error) {
	authHeader, err := extractTokenFromRequest(r, w)
	if err != nil {
		return nil, err
	}

	tokenString, err := ExtractTokenFromHeader(authHeader)
	if err != nil {
		http.Error(w, "Unauthorized: Invalid token format", http.StatusUnauthorized)
		return nil, err
	}

	claims, err := ValidateToken(tokenString)
	if err != nil {
		log.Printf("Token validation error: %v", err)
		http.Error(w, "Unauthorized: Invalid token", http.StatusUnauthorized)
		return nil, err
	}

	return claims, nil
}

// PlayerFromRequest extracts the authenticated player from request headers
// populated by Middleware.
func PlayerFromRequest(r *http.Request, reg *registry.Registry) *models.Player {
	userID := r.Header.Get("X-Player-ID")
	if userID == "" {
		return nil
	}
	client, exists := reg.Get(userID)
	if !exists {
		return nil
	}
	return client
}
