package users

import (
	"context"

	"github.com/khanghh/plantgate/model"
)

func (s *credentialStore) ListOrganizations(ctx context.Context) ([]model.Organization, error) {
	var orgs []model.Organization
	err := s.db.WithContext(ctx).Order("id").Find(&orgs).Error
	return orgs, err
}

func (s *credentialStore) ListPlants(ctx context.Context, organizationIDs []string) ([]model.Plant, error) {
	if len(organizationIDs) == 0 {
		return nil, nil
	}
	var plants []model.Plant
	err := s.db.WithContext(ctx).Where("organization_id IN ?", organizationIDs).Order("id").Find(&plants).Error
	return plants, err
}

func (s *credentialStore) ListMachines(ctx context.Context, plantIDs []string) ([]model.Machine, error) {
	if len(plantIDs) == 0 {
		return nil, nil
	}
	var machines []model.Machine
	err := s.db.WithContext(ctx).Where("plant_id IN ?", plantIDs).Order("id").Find(&machines).Error
	return machines, err
}
