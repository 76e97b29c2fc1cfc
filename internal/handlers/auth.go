package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/kuldevta/estate-api/internal/services"
	"github.com/kuldevta/estate-api/internal/store"
	"github.com/kuldevta/estate-api/types"
)

const (
	defaultTokenTTL = 24 * time.Hour
	setupKeyHeader  = "x-admin-setup-key"
)

// AuthHandler provides the admin authentication endpoints.
type AuthHandler struct {
	adminService *services.AdminService
	secret       []byte
	tokenTTL     time.Duration
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(adminService *services.AdminService, jwtSecret string) *AuthHandler {
	return &AuthHandler{
		adminService: adminService,
		secret:       []byte(jwtSecret),
		tokenTTL:     defaultTokenTTL,
	}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, adminService *services.AdminService, jwtSecret string) {
	handler := NewAuthHandler(adminService, jwtSecret)

	r.Post("/login", handler.Login)
	r.Get("/login", handler.LoginInfo)
	r.With(handler.RequireAuth).Get("/me", handler.Me)
	r.Post("/create-admin", handler.CreateAdmin)
	r.Post("/reset-password", handler.ResetPassword)
}

// RequireAuth enforces JWT authentication and injects the subject into context.
func (h *AuthHandler) RequireAuth(next http.Handler) http.Handler {
	return requireAuth(h.secret)(next)
}

// RequireAuth constructs auth middleware for other routers.
func RequireAuth(jwtSecret string) func(http.Handler) http.Handler {
	return requireAuth([]byte(jwtSecret))
}

func requireAuth(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := bearerToken(r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			subject, err := parseTokenSubject(tokenString, secret)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			ctx := context.WithValue(r.Context(), contextSubjectKey, subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Login authenticates an admin and returns a bearer token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorCode(w, http.StatusBadRequest, "invalid request", "bad_request")
		return
	}

	result, err := h.adminService.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeAuthError(w, err)
		return
	}

	token, err := issueToken(result.Admin.ID, h.secret, h.tokenTTL)
	if err != nil {
		writeErrorCode(w, http.StatusInternalServerError, "failed to create token", "internal")
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{
		Success: true,
		Token:   token,
		Admin:   result.Admin.Summary(),
	})
}

// LoginInfo answers GET probes against the login endpoint; the deployed
// frontend used it as a reachability check.
func (h *AuthHandler) LoginInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Login endpoint is active. Use POST /auth/login with email and password.",
	})
}

// Me returns the current authenticated admin.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	adminID, err := adminIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	admin, err := h.adminService.GetByID(r.Context(), adminID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load admin")
		return
	}

	writeJSON(w, http.StatusOK, MeResponse{Success: true, Admin: admin.Summary()})
}

// CreateAdmin provisions the very first admin account. Gated by the setup key
// header; refused outright once any account exists.
func (h *AuthHandler) CreateAdmin(w http.ResponseWriter, r *http.Request) {
	var req CreateAdminRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorCode(w, http.StatusBadRequest, "invalid request", "bad_request")
		return
	}

	setupKey := strings.TrimSpace(r.Header.Get(setupKeyHeader))
	admin, err := h.adminService.ProvisionInitialAccount(r.Context(), req.Email, req.Password, req.Name, setupKey)
	if err != nil {
		writeAuthError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, MeResponse{Success: true, Admin: admin.Summary()})
}

// ResetPassword replaces an admin's password and reactivates the account.
// Always requires the setup key header.
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorCode(w, http.StatusBadRequest, "invalid request", "bad_request")
		return
	}

	setupKey := strings.TrimSpace(r.Header.Get(setupKeyHeader))
	admin, err := h.adminService.ResetAccountSecret(r.Context(), req.Email, req.Password, setupKey)
	if err != nil {
		writeAuthError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, MeResponse{Success: true, Admin: admin.Summary()})
}

// writeAuthError maps each rejection kind to a distinct status and code.
// Internal details never reach the client.
func writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrBadRequest):
		writeErrorCode(w, http.StatusBadRequest, services.ErrBadRequest.Error(), "bad_request")
	case errors.Is(err, services.ErrInvalidCredentials):
		writeErrorCode(w, http.StatusUnauthorized, services.ErrInvalidCredentials.Error(), "invalid_credentials")
	case errors.Is(err, services.ErrNoAccountProvisioned):
		writeErrorCode(w, http.StatusNotFound, services.ErrNoAccountProvisioned.Error(), "no_account_provisioned")
	case errors.Is(err, services.ErrSetupDisabled):
		writeErrorCode(w, http.StatusForbidden, services.ErrSetupDisabled.Error(), "setup_disabled")
	case errors.Is(err, services.ErrSetupKeyInvalid):
		writeErrorCode(w, http.StatusUnauthorized, services.ErrSetupKeyInvalid.Error(), "setup_key_invalid")
	case errors.Is(err, services.ErrAlreadyProvisioned):
		writeErrorCode(w, http.StatusConflict, services.ErrAlreadyProvisioned.Error(), "already_provisioned")
	case errors.Is(err, store.ErrNotFound):
		writeErrorCode(w, http.StatusNotFound, "admin not found", "not_found")
	default:
		writeErrorCode(w, http.StatusInternalServerError, "server error", "internal")
	}
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type CreateAdminRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

type ResetPasswordRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Success bool               `json:"success"`
	Token   string             `json:"token"`
	Admin   types.AdminSummary `json:"admin"`
}

type MeResponse struct {
	Success bool               `json:"success"`
	Admin   types.AdminSummary `json:"admin"`
}

func issueToken(adminID string, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   adminID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func parseTokenSubject(tokenString string, secret []byte) (string, error) {
	claims := jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return secret, nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", errors.New("invalid token")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", errors.New("missing subject")
	}
	return claims.Subject, nil
}

func bearerToken(r *http.Request) (string, error) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}
