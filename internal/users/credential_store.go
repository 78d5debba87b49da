package users

import (
	"context"
	"time"

	"github.com/khanghh/plantgate/model"
	"gorm.io/gorm"
)

// CredentialStore is the relational store holding users, their grants, the
// resource hierarchy and cached third-party tokens.
type CredentialStore interface {
	// Transaction runs fn against a store bound to a single database
	// transaction. The transaction commits when fn returns nil.
	Transaction(ctx context.Context, fn func(tx CredentialStore) error) error

	FindUserByEmail(ctx context.Context, email string) (*model.User, error)
	FindUserByExternalUsername(ctx context.Context, username string, forUpdate bool) (*model.User, error)
	UpdateExternalToken(ctx context.Context, userID uint, ciphertext string, expiresAt time.Time) error

	ListOrganizations(ctx context.Context) ([]model.Organization, error)
	ListPlants(ctx context.Context, organizationIDs []string) ([]model.Plant, error)
	ListMachines(ctx context.Context, plantIDs []string) ([]model.Machine, error)

	ListSecurityScopes(ctx context.Context) ([]model.SecurityScope, error)
	UpsertSecurityScopes(ctx context.Context, scopes []model.SecurityScope) error
}

type credentialStore struct {
	db *gorm.DB
}

func (s *credentialStore) Transaction(ctx context.Context, fn func(tx CredentialStore) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&credentialStore{db: tx})
	})
}

func NewCredentialStore(db *gorm.DB) CredentialStore {
	return &credentialStore{db: db}
}
