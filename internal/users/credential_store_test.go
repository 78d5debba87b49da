package users

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/khanghh/plantgate/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

func newMockStore(t *testing.T) (CredentialStore, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{SingularTable: true},
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return NewCredentialStore(db), mock
}

func TestListPlantsFiltersByOrganization(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT \\* FROM `plant` WHERE organization_id IN \\(\\?,\\?\\)").
		WithArgs("org1", "org2").
		WillReturnRows(sqlmock.NewRows([]string{"id", "organization_id", "name"}).
			AddRow("plantA", "org1", "Plant A").
			AddRow("plantB", "org2", "Plant B"))

	plants, err := store.ListPlants(context.Background(), []string{"org1", "org2"})
	require.NoError(t, err)
	require.Len(t, plants, 2)
	assert.Equal(t, "plantA", plants[0].ID)
	assert.Equal(t, "org2", plants[1].OrganizationID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListWithoutParentsSkipsQuery(t *testing.T) {
	store, mock := newMockStore(t)

	plants, err := store.ListPlants(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, plants)

	machines, err := store.ListMachines(context.Background(), []string{})
	require.NoError(t, err)
	assert.Empty(t, machines)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListMachines(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT \\* FROM `machine` WHERE plant_id IN \\(\\?\\)").
		WithArgs("plantA").
		WillReturnRows(sqlmock.NewRows([]string{"id", "plant_id", "name"}).
			AddRow("7f1e2a44-52c1-4c4b-8f43-3d0a3c1e9b10", "plantA", "Filler 1"))

	machines, err := store.ListMachines(context.Background(), []string{"plantA"})
	require.NoError(t, err)
	require.Len(t, machines, 1)
	assert.Equal(t, "plantA", machines[0].PlantID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindUserByEmailNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT \\* FROM `user` WHERE email = \\?").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email"}))

	_, err := store.FindUserByEmail(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindUserByExternalUsernameLocksRow(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `user` WHERE external_username = \\?.* FOR UPDATE").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "external_username", "disabled"}).
			AddRow(7, "alice@example.com", "alice@commerce.example.com", false))
	mock.ExpectCommit()

	var found *model.User
	err := store.Transaction(context.Background(), func(tx CredentialStore) error {
		var err error
		found, err = tx.FindUserByExternalUsername(context.Background(), "alice@commerce.example.com", true)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, uint(7), found.ID)
	assert.Equal(t, "alice@example.com", found.Email)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateExternalToken(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `user` SET .*`external_access_token`=\\?.*WHERE id = \\?").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.UpdateExternalToken(context.Background(), 7, "ciphertext", time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRollsBackOnError(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `organization`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow("org1", "Org 1"))
	mock.ExpectRollback()

	err := store.Transaction(context.Background(), func(tx CredentialStore) error {
		if _, err := tx.ListOrganizations(context.Background()); err != nil {
			return err
		}
		return ErrUserNotFound
	})
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertSecurityScopes(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `security_scope` .* ON DUPLICATE KEY UPDATE `name`=VALUES\\(`name`\\)").
		WillReturnResult(sqlmock.NewResult(2, 2))
	mock.ExpectCommit()

	err := store.UpsertSecurityScopes(context.Background(), []model.SecurityScope{
		{ID: 1, Name: "default"},
		{ID: 2, Name: "write"},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
