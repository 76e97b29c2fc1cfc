//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/kuldevta/estate-api/config"
	"github.com/kuldevta/estate-api/internal/db"
	"github.com/kuldevta/estate-api/internal/server"
	_ "github.com/lib/pq"
)

const (
	serverPort     = 18080
	bootstrapEmail = "admin@kuldevta.test"
	bootstrapPass  = "bootstrap-pass-123!"
)

func TestMain(m *testing.M) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	root, err := repoRoot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to locate repo root: %v\n", err)
		os.Exit(1)
	}

	if err := dockerCompose(ctx, root, "up", "-d", "postgres"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start docker compose: %v\n", err)
		os.Exit(1)
	}

	setTestEnv()

	if err := waitForPostgres(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "postgres not ready: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	if err := runMigrations(root); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	srv, err := startServer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start server: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	if err := waitForHealth(ctx, baseURL+"/healthz"); err != nil {
		fmt.Fprintf(os.Stderr, "server not healthy: %v\n", err)
		_ = srv.Shutdown()
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	code := m.Run()

	_ = srv.Shutdown()
	_ = dockerCompose(context.Background(), root, "down")
	os.Exit(code)
}

func TestAdminListingLifecycle(t *testing.T) {
	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)

	token, err := login(t, baseURL, bootstrapEmail, bootstrapPass)
	if err != nil {
		t.Fatalf("bootstrap login: %v", err)
	}

	// Bootstrap login must survive a second round trip against the stored hash.
	if _, err := login(t, baseURL, bootstrapEmail, bootstrapPass); err != nil {
		t.Fatalf("second login: %v", err)
	}

	created, err := createListing(t, baseURL, token)
	if err != nil {
		t.Fatalf("create listing: %v", err)
	}
	if created.ID == 0 {
		t.Fatalf("expected listing ID to be set")
	}
	if created.Title != "2BHK in Satellite" {
		t.Fatalf("unexpected listing title: %q", created.Title)
	}

	fetched, err := getListing(t, baseURL, created.ID)
	if err != nil {
		t.Fatalf("get listing: %v", err)
	}
	if fetched.ID != created.ID {
		t.Fatalf("unexpected listing id: %d", fetched.ID)
	}

	leadID, err := captureLead(t, baseURL, created.ID)
	if err != nil {
		t.Fatalf("capture lead: %v", err)
	}
	if leadID == 0 {
		t.Fatalf("expected lead ID to be set")
	}

	if err := listLeads(t, baseURL, token, created.ID); err != nil {
		t.Fatalf("list leads: %v", err)
	}

	if err := deleteListing(t, baseURL, token, created.ID); err != nil {
		t.Fatalf("delete listing: %v", err)
	}

	if err := expectListingNotFound(t, baseURL, created.ID); err != nil {
		t.Fatalf("expected deleted listing to be missing: %v", err)
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)

	// Make sure the bootstrap account exists before probing the rejection.
	if _, err := login(t, baseURL, bootstrapEmail, bootstrapPass); err != nil {
		t.Fatalf("bootstrap login: %v", err)
	}

	_, err := login(t, baseURL, bootstrapEmail, "not-the-password")
	if err == nil {
		t.Fatalf("expected wrong-password login to fail")
	}
	if !strings.Contains(err.Error(), "401") {
		t.Fatalf("expected 401, got: %v", err)
	}
}

type listingResponse struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
}

type listingEnvelope struct {
	Success bool            `json:"success"`
	Listing listingResponse `json:"listing"`
}

type leadEnvelope struct {
	Success bool `json:"success"`
	Lead    struct {
		ID int `json:"id"`
	} `json:"lead"`
}

type loginResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token"`
}

func login(t *testing.T, baseURL, email, password string) (string, error) {
	t.Helper()

	payload := map[string]string{
		"email":    email,
		"password": password,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequest(http.MethodPost, baseURL+"/auth/login", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("login status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var parsed loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}
	if parsed.Token == "" {
		return "", fmt.Errorf("missing token in login response")
	}
	return parsed.Token, nil
}

func createListing(t *testing.T, baseURL, token string) (listingResponse, error) {
	t.Helper()

	payload := map[string]any{
		"title":       "2BHK in Satellite",
		"description": "Spacious two bedroom apartment with garden view.",
		"price":       4500000,
		"type":        "buy",
		"category":    "2BHK",
		"city":        "Ahmedabad",
		"bedrooms":    2,
		"bathrooms":   2,
		"area":        1150,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return listingResponse{}, err
	}

	req, err := http.NewRequest(http.MethodPost, baseURL+"/listings", bytes.NewReader(body))
	if err != nil {
		return listingResponse{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return listingResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(resp.Body)
		return listingResponse{}, fmt.Errorf("create listing status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var parsed listingEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return listingResponse{}, err
	}
	return parsed.Listing, nil
}

func getListing(t *testing.T, baseURL string, id int) (listingResponse, error) {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, fmt.Sprintf("%s/listings/%d", baseURL, id), nil)
	if err != nil {
		return listingResponse{}, err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return listingResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return listingResponse{}, fmt.Errorf("get listing status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var parsed listingEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return listingResponse{}, err
	}
	return parsed.Listing, nil
}

func captureLead(t *testing.T, baseURL string, listingID int) (int, error) {
	t.Helper()

	payload := map[string]any{
		"listing_id": listingID,
		"name":       "Meera Shah",
		"phone":      "+91 98765 43210",
		"email":      "meera@example.com",
		"message":    "Is this flat still available?",
		"source":     "details",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequest(http.MethodPost, baseURL+"/leads", bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("capture lead status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var parsed leadEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return 0, err
	}
	return parsed.Lead.ID, nil
}

func listLeads(t *testing.T, baseURL, token string, listingID int) error {
	t.Helper()

	url := fmt.Sprintf("%s/leads?listing_id=%d", baseURL, listingID)
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("list leads status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var parsed struct {
		Success bool              `json:"success"`
		Items   []json.RawMessage `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return err
	}
	if len(parsed.Items) == 0 {
		return fmt.Errorf("expected at least one lead for listing %d", listingID)
	}
	return nil
}

func deleteListing(t *testing.T, baseURL, token string, id int) error {
	t.Helper()

	req, err := http.NewRequest(http.MethodDelete, fmt.Sprintf("%s/listings/%d", baseURL, id), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("delete listing status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

func expectListingNotFound(t *testing.T, baseURL string, id int) error {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, fmt.Sprintf("%s/listings/%d", baseURL, id), nil)
	if err != nil {
		return err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("expected 404 after delete, got %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

func waitForPostgres(ctx context.Context) error {
	cfg := config.LoadConfig()
	conn, err := sql.Open("postgres", db.DSN(cfg))
	if err != nil {
		return err
	}
	defer conn.Close()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := conn.PingContext(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("postgres ping timeout: %w", err)
		case <-ticker.C:
		}
	}
}

func waitForHealth(ctx context.Context, url string) error {
	client := &http.Client{Timeout: 2 * time.Second}
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			return fmt.Errorf("health check failed with status")
		case <-ticker.C:
		}
	}
}

func runMigrations(root string) error {
	cfg := config.LoadConfig()
	migrationsPath := filepath.Join(root, "internal", "db", "migrations")
	migrationsURL := "file://" + migrationsPath

	migrator, err := migrate.New(migrationsURL, db.DSN(cfg))
	if err != nil {
		return err
	}
	defer func() {
		_, _ = migrator.Close()
	}()

	if err := migrator.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func setTestEnv() {
	_ = os.Setenv("JWT_SECRET", "test-secret")
	_ = os.Setenv("SERVER_PORT", fmt.Sprintf("%d", serverPort))
	_ = os.Setenv("DB_HOST", "localhost")
	_ = os.Setenv("DB_PORT", "5432")
	_ = os.Setenv("DB_USER", "estate")
	_ = os.Setenv("DB_PASSWORD", "estate")
	_ = os.Setenv("DB_NAME", "estate")
	_ = os.Setenv("DB_USE_SSL", "false")
	_ = os.Setenv("MQ_BACKEND", "none")
	_ = os.Setenv("ADMIN_EMAIL", bootstrapEmail)
	_ = os.Setenv("ADMIN_PASSWORD", bootstrapPass)
}

func startServer() (*server.Server, error) {
	cfg := config.LoadConfig()
	srv, err := server.New(context.Background(), cfg)
	if err != nil {
		return nil, err
	}

	go func() {
		_ = srv.Start()
	}()

	return srv, nil
}

func dockerCompose(ctx context.Context, root string, args ...string) error {
	composeFile := filepath.Join(root, "development", "docker-compose.yml")
	baseArgs := append([]string{"compose", "-f", composeFile}, args...)
	cmd := exec.CommandContext(ctx, "docker", baseArgs...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found")
		}
		dir = parent
	}
}
