package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/kuldevta/estate-api/config"
	"github.com/kuldevta/estate-api/internal/services"
	"github.com/kuldevta/estate-api/internal/store"
	"github.com/kuldevta/estate-api/types"
)

const testJWTSecret = "test-jwt-secret"

// memAdminRepo is an in-memory services.AdminRepository backing handler tests.
type memAdminRepo struct {
	admins map[string]types.Admin
	legacy map[string]store.LegacyAdmin
}

func newMemAdminRepo() *memAdminRepo {
	return &memAdminRepo{
		admins: make(map[string]types.Admin),
		legacy: make(map[string]store.LegacyAdmin),
	}
}

func (m *memAdminRepo) GetByID(ctx context.Context, id string) (types.Admin, error) {
	for _, admin := range m.admins {
		if admin.ID == id {
			return admin, nil
		}
	}
	return types.Admin{}, store.ErrNotFound
}

func (m *memAdminRepo) GetByEmail(ctx context.Context, email string) (types.Admin, error) {
	admin, ok := m.admins[email]
	if !ok {
		return types.Admin{}, store.ErrNotFound
	}
	return admin, nil
}

func (m *memAdminRepo) ExistsAny(ctx context.Context) (bool, error) {
	return len(m.admins) > 0, nil
}

func (m *memAdminRepo) Create(ctx context.Context, admin types.Admin) (types.Admin, error) {
	m.admins[admin.Email] = admin
	return admin, nil
}

func (m *memAdminRepo) Update(ctx context.Context, admin types.Admin) (types.Admin, error) {
	for email, existing := range m.admins {
		if existing.ID == admin.ID {
			delete(m.admins, email)
			m.admins[admin.Email] = admin
			return admin, nil
		}
	}
	return types.Admin{}, store.ErrNotFound
}

func (m *memAdminRepo) GetLegacyByEmail(ctx context.Context, email string) (store.LegacyAdmin, error) {
	legacy, ok := m.legacy[email]
	if !ok {
		return store.LegacyAdmin{}, store.ErrNotFound
	}
	return legacy, nil
}

func (m *memAdminRepo) PromoteLegacy(ctx context.Context, legacyID int, admin types.Admin) (types.Admin, error) {
	for email, legacy := range m.legacy {
		if legacy.ID == legacyID {
			delete(m.legacy, email)
		}
	}
	if existing, ok := m.admins[admin.Email]; ok {
		return existing, nil
	}
	m.admins[admin.Email] = admin
	return admin, nil
}

func newAuthTestServer(t *testing.T, repo *memAdminRepo, cfg config.AuthConfig) *httptest.Server {
	t.Helper()

	svc := services.NewAdminService(repo, func() config.AuthConfig { return cfg })
	r := chi.NewRouter()
	r.Route("/auth", func(r chi.Router) {
		AuthRouter(r, svc, testJWTSecret)
	})

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return server
}

func seedActiveAdmin(t *testing.T, repo *memAdminRepo, email, password string) types.Admin {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	admin := types.Admin{
		ID:           "admin-1",
		Email:        email,
		Name:         "Seed Admin",
		Role:         "super-admin",
		PasswordHash: string(hash),
		Active:       true,
	}
	repo.admins[email] = admin
	return admin
}

func postJSON(t *testing.T, url string, payload any, headers map[string]string) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestLoginSuccess(t *testing.T) {
	repo := newMemAdminRepo()
	seedActiveAdmin(t, repo, "admin@example.com", "correct-horse")
	server := newAuthTestServer(t, repo, config.AuthConfig{})

	resp := postJSON(t, server.URL+"/auth/login", LoginRequest{
		Email:    "admin@example.com",
		Password: "correct-horse",
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	parsed := decodeBody[LoginResponse](t, resp)
	assert.True(t, parsed.Success)
	assert.NotEmpty(t, parsed.Token)
	assert.Equal(t, "admin@example.com", parsed.Admin.Email)

	subject, err := parseTokenSubject(parsed.Token, []byte(testJWTSecret))
	require.NoError(t, err)
	assert.Equal(t, "admin-1", subject)
}

func TestLoginStatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		seed       bool
		email      string
		password   string
		wantStatus int
		wantCode   string
	}{
		{"missing fields", true, "", "", http.StatusBadRequest, "bad_request"},
		{"wrong password", true, "admin@example.com", "nope", http.StatusUnauthorized, "invalid_credentials"},
		{"unknown email populated store", true, "ghost@example.com", "nope", http.StatusUnauthorized, "invalid_credentials"},
		{"empty store", false, "ghost@example.com", "nope", http.StatusNotFound, "no_account_provisioned"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMemAdminRepo()
			if tt.seed {
				seedActiveAdmin(t, repo, "admin@example.com", "correct-horse")
			}
			server := newAuthTestServer(t, repo, config.AuthConfig{})

			resp := postJSON(t, server.URL+"/auth/login", LoginRequest{
				Email:    tt.email,
				Password: tt.password,
			}, nil)
			require.Equal(t, tt.wantStatus, resp.StatusCode)

			parsed := decodeBody[ErrorResponse](t, resp)
			assert.False(t, parsed.Success)
			assert.Equal(t, tt.wantCode, parsed.Code)
		})
	}
}

func TestLoginMalformedBody(t *testing.T) {
	repo := newMemAdminRepo()
	server := newAuthTestServer(t, repo, config.AuthConfig{})

	resp, err := http.Post(server.URL+"/auth/login", "application/json", bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	parsed := decodeBody[ErrorResponse](t, resp)
	assert.Equal(t, "bad_request", parsed.Code)
}

func TestLoginInfoProbe(t *testing.T) {
	repo := newMemAdminRepo()
	server := newAuthTestServer(t, repo, config.AuthConfig{})

	resp, err := http.Get(server.URL + "/auth/login")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	parsed := decodeBody[map[string]any](t, resp)
	assert.Equal(t, true, parsed["success"])
}

func TestMeRequiresValidToken(t *testing.T) {
	repo := newMemAdminRepo()
	seedActiveAdmin(t, repo, "admin@example.com", "correct-horse")
	server := newAuthTestServer(t, repo, config.AuthConfig{})

	// No token.
	resp, err := http.Get(server.URL + "/auth/me")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Garbage token.
	req, err := http.NewRequest(http.MethodGet, server.URL+"/auth/me", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Token signed with a different secret.
	forged, err := issueToken("admin-1", []byte("other-secret"), time.Hour)
	require.NoError(t, err)
	req, err = http.NewRequest(http.MethodGet, server.URL+"/auth/me", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+forged)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestMeReturnsCurrentAdmin(t *testing.T) {
	repo := newMemAdminRepo()
	seedActiveAdmin(t, repo, "admin@example.com", "correct-horse")
	server := newAuthTestServer(t, repo, config.AuthConfig{})

	login := postJSON(t, server.URL+"/auth/login", LoginRequest{
		Email:    "admin@example.com",
		Password: "correct-horse",
	}, nil)
	require.Equal(t, http.StatusOK, login.StatusCode)
	token := decodeBody[LoginResponse](t, login).Token

	req, err := http.NewRequest(http.MethodGet, server.URL+"/auth/me", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	parsed := decodeBody[MeResponse](t, resp)
	assert.Equal(t, "admin@example.com", parsed.Admin.Email)
	assert.Equal(t, "Seed Admin", parsed.Admin.Name)
}

func TestCreateAdminFlow(t *testing.T) {
	repo := newMemAdminRepo()
	server := newAuthTestServer(t, repo, config.AuthConfig{SetupKey: "sk-123"})
	headers := map[string]string{setupKeyHeader: "sk-123"}

	resp := postJSON(t, server.URL+"/auth/create-admin", CreateAdminRequest{
		Email:    "first@example.com",
		Password: "pass1234",
		Name:     "First Admin",
	}, headers)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	parsed := decodeBody[MeResponse](t, resp)
	assert.Equal(t, "first@example.com", parsed.Admin.Email)

	// Freshly provisioned credentials log in.
	login := postJSON(t, server.URL+"/auth/login", LoginRequest{
		Email:    "first@example.com",
		Password: "pass1234",
	}, nil)
	defer login.Body.Close()
	require.Equal(t, http.StatusOK, login.StatusCode)

	// Second provisioning attempt conflicts even with a valid key.
	resp = postJSON(t, server.URL+"/auth/create-admin", CreateAdminRequest{
		Email:    "second@example.com",
		Password: "pass1234",
	}, headers)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "already_provisioned", decodeBody[ErrorResponse](t, resp).Code)
}

func TestCreateAdminSetupKeyRejections(t *testing.T) {
	tests := []struct {
		name       string
		cfg        config.AuthConfig
		key        string
		wantStatus int
		wantCode   string
	}{
		{"wrong key", config.AuthConfig{SetupKey: "sk-123"}, "nope", http.StatusUnauthorized, "setup_key_invalid"},
		{"production without key", config.AuthConfig{Production: true}, "anything", http.StatusForbidden, "setup_disabled"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMemAdminRepo()
			server := newAuthTestServer(t, repo, tt.cfg)

			resp := postJSON(t, server.URL+"/auth/create-admin", CreateAdminRequest{
				Email:    "first@example.com",
				Password: "pass1234",
			}, map[string]string{setupKeyHeader: tt.key})
			require.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, tt.wantCode, decodeBody[ErrorResponse](t, resp).Code)
		})
	}
}

func TestResetPasswordFlow(t *testing.T) {
	repo := newMemAdminRepo()
	seedActiveAdmin(t, repo, "admin@example.com", "old-pass")
	server := newAuthTestServer(t, repo, config.AuthConfig{SetupKey: "sk-123"})

	resp := postJSON(t, server.URL+"/auth/reset-password", ResetPasswordRequest{
		Email:    "admin@example.com",
		Password: "fresh-pass",
	}, map[string]string{setupKeyHeader: "sk-123"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	login := postJSON(t, server.URL+"/auth/login", LoginRequest{
		Email:    "admin@example.com",
		Password: "fresh-pass",
	}, nil)
	defer login.Body.Close()
	assert.Equal(t, http.StatusOK, login.StatusCode)

	stale := postJSON(t, server.URL+"/auth/login", LoginRequest{
		Email:    "admin@example.com",
		Password: "old-pass",
	}, nil)
	defer stale.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, stale.StatusCode)
}

func TestResetPasswordUnknownEmail(t *testing.T) {
	repo := newMemAdminRepo()
	server := newAuthTestServer(t, repo, config.AuthConfig{SetupKey: "sk-123"})

	resp := postJSON(t, server.URL+"/auth/reset-password", ResetPasswordRequest{
		Email:    "ghost@example.com",
		Password: "fresh-pass",
	}, map[string]string{setupKeyHeader: "sk-123"})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", decodeBody[ErrorResponse](t, resp).Code)
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    string
		wantErr bool
	}{
		{"valid", "Bearer abc.def.ghi", "abc.def.ghi", false},
		{"case insensitive scheme", "bearer abc", "abc", false},
		{"missing header", "", "", true},
		{"wrong scheme", "Basic abc", "", true},
		{"empty token", "Bearer   ", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			token, err := bearerToken(req)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, token)
		})
	}
}

func TestIssueAndParseToken(t *testing.T) {
	secret := []byte("secret")

	token, err := issueToken("admin-42", secret, time.Hour)
	require.NoError(t, err)

	subject, err := parseTokenSubject(token, secret)
	require.NoError(t, err)
	assert.Equal(t, "admin-42", subject)

	_, err = parseTokenSubject(token, []byte("different"))
	require.Error(t, err)

	expired, err := issueToken("admin-42", secret, -time.Minute)
	require.NoError(t, err)
	_, err = parseTokenSubject(expired, secret)
	require.Error(t, err)
}
