package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/doculord/doculord/pkg/database"
	"github.com/doculord/doculord/pkg/models"
)

// ErrInvalidCredentials is returned for unknown, inactive, or mismatched
// client credentials. Callers get one error for all three cases so responses
// cannot leak which part was wrong.
var ErrInvalidCredentials = errors.New("invalid client credentials")

// CredentialService authenticates API clients against stored bcrypt hashes.
type CredentialService struct {
	db *database.Client
}

// NewCredentialService creates a new CredentialService.
func NewCredentialService(db *database.Client) *CredentialService {
	return &CredentialService{db: db}
}

// Authenticate verifies a client ID and secret pair. Only active credentials
// match.
func (s *CredentialService) Authenticate(ctx context.Context, clientID, clientSecret string) (*models.ClientCredential, error) {
	if clientID == "" || clientSecret == "" {
		return nil, ErrInvalidCredentials
	}

	var cred models.ClientCredential
	err := s.db.GetContext(ctx, &cred, `
		SELECT * FROM client_credentials
		WHERE client_id = $1 AND is_active`, clientID)
	if errors.Is(err, sql.ErrNoRows) {
		slog.Warn("Authentication failed: client not found or inactive", "client_id", clientID)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up client %s: %w", clientID, err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(cred.ClientSecret), secretBytes(clientSecret)); err != nil {
		slog.Warn("Authentication failed: secret mismatch", "client_id", clientID)
		return nil, ErrInvalidCredentials
	}
	return &cred, nil
}

// Create stores a new client credential, hashing the secret with bcrypt.
func (s *CredentialService) Create(ctx context.Context, clientID, clientSecret, description string) (*models.ClientCredential, error) {
	if clientID == "" {
		return nil, NewValidationError("client_id", "required")
	}
	if clientSecret == "" {
		return nil, NewValidationError("client_secret", "required")
	}

	hash, err := bcrypt.GenerateFromPassword(secretBytes(clientSecret), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash client secret: %w", err)
	}

	cred := &models.ClientCredential{
		ID:           uuid.New(),
		ClientID:     clientID,
		ClientSecret: string(hash),
		IsActive:     true,
		CreatedAt:    time.Now().UTC(),
	}
	if description != "" {
		cred.Description = &description
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO client_credentials (id, client_id, client_secret, description, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		cred.ID, cred.ClientID, cred.ClientSecret, cred.Description, cred.IsActive, cred.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create client credential: %w", err)
	}

	slog.Info("Created client credential", "client_id", clientID)
	return cred, nil
}

// secretBytes applies bcrypt's 72-byte input ceiling. Longer secrets are
// truncated, matching how the credentials were hashed at creation.
func secretBytes(secret string) []byte {
	b := []byte(secret)
	if len(b) > 72 {
		b = b[:72]
	}
	return b
}
