package users

import (
	"context"
	"errors"
	"time"

	"github.com/khanghh/plantgate/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	colUserEmail               = "email"
	colUserExternalUsername    = "external_username"
	colUserExternalAccessToken = "external_access_token"
	colUserExternalTokenExpiry = "external_token_expiry"
)

func (s *credentialStore) FindUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := s.db.WithContext(ctx).
		Preload("Organizations.Organization").
		Preload("Plants.Plant").
		Preload("Machines.Machine").
		Preload("Scopes.Scope").
		Where(colUserEmail+" = ?", email).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *credentialStore) FindUserByExternalUsername(ctx context.Context, username string, forUpdate bool) (*model.User, error) {
	var user model.User
	tx := s.db.WithContext(ctx)
	if forUpdate {
		tx = tx.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate})
	}
	err := tx.Where(colUserExternalUsername+" = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *credentialStore) UpdateExternalToken(ctx context.Context, userID uint, ciphertext string, expiresAt time.Time) error {
	updates := map[string]interface{}{
		colUserExternalAccessToken: ciphertext,
		colUserExternalTokenExpiry: expiresAt,
	}
	return s.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", userID).Updates(updates).Error
}
