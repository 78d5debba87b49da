package users

import (
	"context"

	"github.com/khanghh/plantgate/model"
	"gorm.io/gorm/clause"
)

func (s *credentialStore) ListSecurityScopes(ctx context.Context) ([]model.SecurityScope, error) {
	var scopes []model.SecurityScope
	err := s.db.WithContext(ctx).Order("id").Find(&scopes).Error
	return scopes, err
}

func (s *credentialStore) UpsertSecurityScopes(ctx context.Context, scopes []model.SecurityScope) error {
	if len(scopes) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoUpdates: clause.AssignmentColumns([]string{"name"})}).
		Create(&scopes).Error
}
