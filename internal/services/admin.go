package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/kuldevta/estate-api/config"
	"github.com/kuldevta/estate-api/internal/logger"
	"github.com/kuldevta/estate-api/internal/store"
	"github.com/kuldevta/estate-api/types"
)

const (
	defaultAdminName = "Admin"
	defaultAdminRole = "super-admin"
)

// legacySecretFields are the secret field names used by historical admin
// documents, tried in order during migration.
var legacySecretFields = []string{
	"password",
	"passwordHash",
	"password_hash",
	"pass",
	"pwd",
	"adminPassword",
}

// legacyNameFields are the display-name variants seen in historical documents.
var legacyNameFields = []string{"name", "displayName", "fullName"}

// AdminRepository defines persistence operations for admin accounts.
type AdminRepository interface {
	GetByID(ctx context.Context, id string) (types.Admin, error)
	GetByEmail(ctx context.Context, email string) (types.Admin, error)
	ExistsAny(ctx context.Context) (bool, error)
	Create(ctx context.Context, admin types.Admin) (types.Admin, error)
	Update(ctx context.Context, admin types.Admin) (types.Admin, error)
	GetLegacyByEmail(ctx context.Context, email string) (store.LegacyAdmin, error)
	PromoteLegacy(ctx context.Context, legacyID int, admin types.Admin) (types.Admin, error)
}

// AuthConfigSource supplies the bootstrap identity and setup key. It is called
// once per operation, never cached, so config.AuthFromEnv lets operators rotate
// the secrets without a restart. Tests inject fixtures.
type AuthConfigSource func() config.AuthConfig

// AuthResult is a successful authentication decision. The flags record side
// effects of the login so callers and tests can observe them directly instead
// of inferring them from a second login.
type AuthResult struct {
	Admin types.Admin

	// Bootstrapped: the seeded operator identity matched and the account was
	// created or re-synced from it.
	Bootstrapped bool

	// Migrated: the account was promoted from a legacy document during this
	// login.
	Migrated bool

	// SecretUpgraded: a stored plaintext secret was replaced with a hash
	// during this login.
	SecretUpgraded bool
}

// AdminService reconciles admin credentials: it authenticates logins,
// provisions the first account, migrates legacy records, and handles
// setup-key-gated recovery.
type AdminService struct {
	repo AdminRepository
	cfg  AuthConfigSource
	log  *zap.Logger
}

func NewAdminService(repo AdminRepository, cfg AuthConfigSource) *AdminService {
	return &AdminService{
		repo: repo,
		cfg:  cfg,
		log:  logger.Named("auth"),
	}
}

func (s *AdminService) GetByID(ctx context.Context, id string) (types.Admin, error) {
	return s.repo.GetByID(ctx, id)
}

// Authenticate decides a login attempt. The decision sequence is ordered and
// the first matching branch wins:
//
//  1. Bootstrap identity: submitted credentials exactly match the configured
//     seed identity. The seeded account is created if missing, otherwise its
//     secret is overwritten and it is forced active, so the operator always
//     has a way back in even if the stored record drifted or was locked out.
//  2. Normal lookup by normalized email, falling back to legacy-document
//     migration when the email is absent from the admins table.
//
// An unknown email returns ErrNoAccountProvisioned only while the store holds
// no accounts at all; once any account exists the rejection is uniformly
// ErrInvalidCredentials.
func (s *AdminService) Authenticate(ctx context.Context, email, password string) (AuthResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return AuthResult{}, ErrBadRequest
	}

	cfg := s.cfg()
	if cfg.BootstrapEmail != "" && cfg.BootstrapPassword != "" &&
		email == cfg.BootstrapEmail && secretsEqual(password, cfg.BootstrapPassword) {
		return s.authenticateBootstrap(ctx, email, password)
	}

	admin, err := s.repo.GetByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return s.authenticateLegacy(ctx, email, password)
	}
	if err != nil {
		return AuthResult{}, err
	}

	if !admin.Active {
		// Inactive state is not disclosed.
		s.log.Warn("login rejected for inactive account", zap.String("admin_id", admin.ID))
		return AuthResult{}, ErrInvalidCredentials
	}

	result := AuthResult{}
	if isBcryptHash(admin.PasswordHash) {
		if bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)) != nil {
			return AuthResult{}, ErrInvalidCredentials
		}
	} else {
		// Transitional plaintext secret: verify directly, then upgrade the
		// stored value before anything else happens.
		if !secretsEqual(password, admin.PasswordHash) {
			return AuthResult{}, ErrInvalidCredentials
		}
		hash, err := hashSecret(password)
		if err != nil {
			return AuthResult{}, err
		}
		admin.PasswordHash = hash
		result.SecretUpgraded = true
		s.log.Info("upgraded plaintext admin secret to hash", zap.String("admin_id", admin.ID))
	}

	admin, err = s.touchLogin(ctx, admin)
	if err != nil {
		return AuthResult{}, err
	}
	result.Admin = admin
	return result, nil
}

// authenticateBootstrap handles a login whose credentials match the configured
// seed identity. The seed is authoritative: the stored record is created or
// overwritten to match it.
func (s *AdminService) authenticateBootstrap(ctx context.Context, email, password string) (AuthResult, error) {
	hash, err := hashSecret(password)
	if err != nil {
		return AuthResult{}, err
	}
	now := time.Now()

	admin, err := s.repo.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, store.ErrNotFound):
		admin, err = s.repo.Create(ctx, types.Admin{
			ID:           uuid.NewString(),
			Email:        email,
			Name:         defaultAdminName,
			Role:         defaultAdminRole,
			PasswordHash: hash,
			Active:       true,
			LastLoginAt:  &now,
		})
		if err != nil {
			return AuthResult{}, err
		}
		s.log.Info("bootstrapped admin account from environment seed",
			zap.String("admin_id", admin.ID))
	case err != nil:
		return AuthResult{}, err
	default:
		admin.PasswordHash = hash
		admin.Active = true
		admin.LastLoginAt = &now
		admin, err = s.repo.Update(ctx, admin)
		if err != nil {
			return AuthResult{}, err
		}
		s.log.Info("re-synced admin account from environment seed",
			zap.String("admin_id", admin.ID))
	}

	return AuthResult{Admin: admin, Bootstrapped: true}, nil
}

// authenticateLegacy runs when no admins row matches the email. A matching
// legacy document is verified and promoted into a normalized row; with no
// legacy document the rejection depends on whether any account exists at all.
func (s *AdminService) authenticateLegacy(ctx context.Context, email, password string) (AuthResult, error) {
	legacy, err := s.repo.GetLegacyByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		exists, err := s.repo.ExistsAny(ctx)
		if err != nil {
			return AuthResult{}, err
		}
		if exists {
			return AuthResult{}, ErrInvalidCredentials
		}
		return AuthResult{}, ErrNoAccountProvisioned
	}
	if err != nil {
		return AuthResult{}, err
	}

	secret, ok := legacySecret(legacy.Doc)
	if !ok {
		s.log.Warn("legacy admin document has no usable secret field",
			zap.Int("legacy_id", legacy.ID))
		return AuthResult{}, fmt.Errorf("%w: legacy secret missing", ErrInvalidCredentials)
	}

	if isBcryptHash(secret) {
		if bcrypt.CompareHashAndPassword([]byte(secret), []byte(password)) != nil {
			return AuthResult{}, ErrInvalidCredentials
		}
	} else if !secretsEqual(password, secret) {
		return AuthResult{}, ErrInvalidCredentials
	}

	// Verified. Promote the document into a normalized account; plaintext
	// legacy secrets are hashed on the way in.
	hash := secret
	if !isBcryptHash(secret) {
		hash, err = hashSecret(password)
		if err != nil {
			return AuthResult{}, err
		}
	}

	now := time.Now()
	admin := types.Admin{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         legacyString(legacy.Doc, legacyNameFields, defaultAdminName),
		Role:         legacyString(legacy.Doc, []string{"role"}, defaultAdminRole),
		PasswordHash: hash,
		Active:       legacyActive(legacy.Doc),
		LastLoginAt:  &now,
	}

	admin, err = s.repo.PromoteLegacy(ctx, legacy.ID, admin)
	if err != nil {
		return AuthResult{}, err
	}
	s.log.Info("migrated legacy admin document",
		zap.Int("legacy_id", legacy.ID),
		zap.String("admin_id", admin.ID))

	if !admin.Active {
		return AuthResult{}, ErrInvalidCredentials
	}
	return AuthResult{Admin: admin, Migrated: true}, nil
}

// ProvisionInitialAccount creates the very first admin account. It refuses
// once any account exists, regardless of setup-key validity. The setup-key
// check is waived only when the caller presents the exact bootstrap identity
// on a production deployment that has no setup key configured.
func (s *AdminService) ProvisionInitialAccount(ctx context.Context, email, password, name, setupKey string) (types.Admin, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return types.Admin{}, ErrBadRequest
	}

	exists, err := s.repo.ExistsAny(ctx)
	if err != nil {
		return types.Admin{}, err
	}
	if exists {
		return types.Admin{}, ErrAlreadyProvisioned
	}

	cfg := s.cfg()
	waived := cfg.Production && cfg.SetupKey == "" &&
		cfg.BootstrapEmail != "" && cfg.BootstrapPassword != "" &&
		email == cfg.BootstrapEmail && secretsEqual(password, cfg.BootstrapPassword)
	if !waived {
		if err := checkSetupKey(cfg, setupKey); err != nil {
			return types.Admin{}, err
		}
	}

	hash, err := hashSecret(password)
	if err != nil {
		return types.Admin{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = defaultAdminName
	}

	admin, err := s.repo.Create(ctx, types.Admin{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         name,
		Role:         defaultAdminRole,
		PasswordHash: hash,
		Active:       true,
	})
	if err != nil {
		return types.Admin{}, err
	}
	s.log.Info("provisioned initial admin account", zap.String("admin_id", admin.ID))
	return admin, nil
}

// ResetAccountSecret replaces an account's secret and reactivates it. Always
// setup-key gated; there is no bootstrap waiver here.
func (s *AdminService) ResetAccountSecret(ctx context.Context, email, newPassword, setupKey string) (types.Admin, error) {
	email = normalizeEmail(email)
	if email == "" || newPassword == "" {
		return types.Admin{}, ErrBadRequest
	}

	if err := checkSetupKey(s.cfg(), setupKey); err != nil {
		return types.Admin{}, err
	}

	admin, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return types.Admin{}, err
	}

	hash, err := hashSecret(newPassword)
	if err != nil {
		return types.Admin{}, err
	}
	admin.PasswordHash = hash
	admin.Active = true

	admin, err = s.repo.Update(ctx, admin)
	if err != nil {
		return types.Admin{}, err
	}
	s.log.Info("reset admin secret", zap.String("admin_id", admin.ID))
	return admin, nil
}

// checkSetupKey validates the caller-presented setup key. With no key
// configured, production refuses outright and non-production deployments are
// treated as first-run open, matching the original deployment behavior.
func checkSetupKey(cfg config.AuthConfig, presented string) error {
	if cfg.SetupKey == "" {
		if cfg.Production {
			return ErrSetupDisabled
		}
		return nil
	}
	if !secretsEqual(presented, cfg.SetupKey) {
		return ErrSetupKeyInvalid
	}
	return nil
}

func (s *AdminService) touchLogin(ctx context.Context, admin types.Admin) (types.Admin, error) {
	now := time.Now()
	admin.LastLoginAt = &now
	return s.repo.Update(ctx, admin)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// isBcryptHash detects the structural shape of a bcrypt hash, which is how a
// stored secret is distinguished from a transitional plaintext value.
func isBcryptHash(s string) bool {
	if len(s) != 60 {
		return false
	}
	switch {
	case strings.HasPrefix(s, "$2a$"),
		strings.HasPrefix(s, "$2b$"),
		strings.HasPrefix(s, "$2y$"):
		return true
	}
	return false
}

func hashSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func secretsEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// legacySecret pulls the stored secret out of a legacy document, trying the
// historical field names in order.
func legacySecret(doc map[string]any) (string, bool) {
	for _, field := range legacySecretFields {
		if value, ok := doc[field].(string); ok && value != "" {
			return value, true
		}
	}
	return "", false
}

func legacyString(doc map[string]any, fields []string, fallback string) string {
	for _, field := range fields {
		if value, ok := doc[field].(string); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return fallback
}

// legacyActive defaults to true unless the document explicitly disabled the
// account.
func legacyActive(doc map[string]any) bool {
	if value, ok := doc["active"].(bool); ok {
		return value
	}
	return true
}
