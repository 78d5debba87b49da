// Package userstest provides an in-memory users.CredentialStore for tests.
package userstest

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/khanghh/plantgate/internal/users"
	"github.com/khanghh/plantgate/model"
)

type MemoryStore struct {
	txMu sync.Mutex // serializes transactions, standing in for row locks
	mu   sync.RWMutex

	users         map[string]*model.User // by email
	organizations map[string]*model.Organization
	plants        map[string]*model.Plant
	machines      map[string]*model.Machine
	scopes        map[uint]*model.SecurityScope

	TokenUpdates atomic.Int32
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:         make(map[string]*model.User),
		organizations: make(map[string]*model.Organization),
		plants:        make(map[string]*model.Plant),
		machines:      make(map[string]*model.Machine),
		scopes:        make(map[uint]*model.SecurityScope),
	}
}

type txStore struct {
	*MemoryStore
}

func (t txStore) Transaction(ctx context.Context, fn func(tx users.CredentialStore) error) error {
	return fn(t)
}

func (s *MemoryStore) Transaction(ctx context.Context, fn func(tx users.CredentialStore) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return fn(txStore{s})
}

func cloneUser(u *model.User) *model.User {
	out := *u
	out.Organizations = append([]model.UserOrganization(nil), u.Organizations...)
	out.Plants = append([]model.UserPlant(nil), u.Plants...)
	out.Machines = append([]model.UserMachine(nil), u.Machines...)
	out.Scopes = append([]model.UserScope(nil), u.Scopes...)
	if u.ExternalTokenExpiry != nil {
		expiry := *u.ExternalTokenExpiry
		out.ExternalTokenExpiry = &expiry
	}
	return &out
}

func (s *MemoryStore) FindUserByEmail(ctx context.Context, email string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[email]
	if !ok {
		return nil, users.ErrUserNotFound
	}
	return cloneUser(user), nil
}

func (s *MemoryStore) FindUserByExternalUsername(ctx context.Context, username string, forUpdate bool) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, user := range s.users {
		if user.ExternalUsername != nil && *user.ExternalUsername == username {
			return cloneUser(user), nil
		}
	}
	return nil, users.ErrUserNotFound
}

func (s *MemoryStore) UpdateExternalToken(ctx context.Context, userID uint, ciphertext string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.ID == userID {
			user.ExternalAccessToken = ciphertext
			user.ExternalTokenExpiry = &expiresAt
			s.TokenUpdates.Add(1)
			return nil
		}
	}
	return users.ErrUserNotFound
}

func (s *MemoryStore) ListOrganizations(ctx context.Context) ([]model.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Organization
	for _, org := range s.organizations {
		out = append(out, *org)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func (s *MemoryStore) ListPlants(ctx context.Context, organizationIDs []string) ([]model.Plant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Plant
	for _, plant := range s.plants {
		if contains(organizationIDs, plant.OrganizationID) {
			out = append(out, *plant)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) ListMachines(ctx context.Context, plantIDs []string) ([]model.Machine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Machine
	for _, machine := range s.machines {
		if contains(plantIDs, machine.PlantID) {
			out = append(out, *machine)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) ListSecurityScopes(ctx context.Context) ([]model.SecurityScope, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.SecurityScope
	for _, scope := range s.scopes {
		out = append(out, *scope)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) UpsertSecurityScopes(ctx context.Context, scopes []model.SecurityScope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, scope := range scopes {
		scope := scope
		s.scopes[scope.ID] = &scope
	}
	return nil
}

// Fixture helpers.

func (s *MemoryStore) AddOrganization(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.organizations[id] = &model.Organization{ID: id, Name: id}
}

func (s *MemoryStore) AddPlant(id, organizationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plants[id] = &model.Plant{ID: id, OrganizationID: organizationID, Name: id}
}

func (s *MemoryStore) AddMachine(id, plantID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.machines[id] = &model.Machine{ID: id, PlantID: plantID, Name: id}
}

// AddUser stores user, assigning an ID when missing.
func (s *MemoryStore) AddUser(user *model.User) *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user.ID == 0 {
		user.ID = uint(len(s.users) + 1)
	}
	s.users[user.Email] = user
	return user
}

func (s *MemoryStore) GrantOrganization(email, organizationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := s.users[email]
	user.Organizations = append(user.Organizations, model.UserOrganization{
		UserID:         user.ID,
		OrganizationID: organizationID,
		Organization:   s.organizations[organizationID],
	})
}

func (s *MemoryStore) GrantPlant(email, plantID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := s.users[email]
	user.Plants = append(user.Plants, model.UserPlant{
		UserID:  user.ID,
		PlantID: plantID,
		Plant:   s.plants[plantID],
	})
}

func (s *MemoryStore) RevokePlant(email, plantID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := s.users[email]
	kept := user.Plants[:0]
	for _, grant := range user.Plants {
		if grant.PlantID != plantID {
			kept = append(kept, grant)
		}
	}
	user.Plants = kept
}

func (s *MemoryStore) GrantMachine(email, machineID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := s.users[email]
	user.Machines = append(user.Machines, model.UserMachine{
		UserID:    user.ID,
		MachineID: machineID,
		Machine:   s.machines[machineID],
	})
}

func (s *MemoryStore) GrantScope(email string, scopeID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := s.users[email]
	user.Scopes = append(user.Scopes, model.UserScope{
		UserID:  user.ID,
		ScopeID: scopeID,
		Scope:   s.scopes[scopeID],
	})
}

func (s *MemoryStore) SetDisabled(email string, disabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[email].Disabled = disabled
}
