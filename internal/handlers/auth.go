package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/pulsewatch/pulsewatch/internal/api"
	"github.com/pulsewatch/pulsewatch/internal/middleware"
)

// AuthHandler serves login and token verification for the single
// operator account
type AuthHandler struct {
	auth *middleware.JWTAuth
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(auth *middleware.JWTAuth) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// SetupRoutes configures authentication routes. Login must be listed in
// the auth middleware's skip paths; verify runs behind it.
func (h *AuthHandler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /auth/login", h.handleLogin)
	mux.HandleFunc("GET /auth/verify", h.handleVerify)
}

// LoginRequest is the request body for POST /auth/login
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse carries the issued token and its lifetime
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	ExpiresIn int       `json:"expires_in"`
}

// handleLogin checks operator credentials and issues a token
func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if fieldErrors := api.Validate(req); fieldErrors != nil {
		api.RespondValidationError(w, fieldErrors)
		return
	}

	if !h.auth.ValidateCredentials(req.Username, req.Password) {
		log.Printf("Failed login attempt for user %q", req.Username)
		api.RespondError(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}

	token, expiresAt, err := h.auth.GenerateToken(req.Username)
	if err != nil {
		log.Printf("Failed to issue token for user %q: %v", req.Username, err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to issue token")
		return
	}

	api.RespondJSON(w, http.StatusOK, LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		ExpiresIn: int(time.Until(expiresAt).Seconds()),
	})
}

// handleVerify reports the authenticated user of the current token. The
// auth middleware has already validated it by the time this runs.
func (h *AuthHandler) handleVerify(w http.ResponseWriter, r *http.Request) {
	username, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		api.RespondError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	api.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"authenticated": true,
		"username":      username,
	})
}
