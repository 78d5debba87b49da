package users

import (
	"context"
	"errors"
	"net/mail"
	"sync"

	"github.com/khanghh/plantgate/model"
	"golang.org/x/crypto/bcrypt"
)

type UserService struct {
	store CredentialStore
}

func (s *UserService) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrInvalidEmail
	}
	return s.store.FindUserByEmail(ctx, email)
}

var compareHashAndPassword = bcrypt.CompareHashAndPassword

// dummyPasswordHash is compared against when the email is unknown so that
// lookups of missing users cost as much as a wrong password.
var dummyPasswordHash = sync.OnceValue(func() []byte {
	hash, err := bcrypt.GenerateFromPassword([]byte("plantgate-dummy-password"), bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}
	return hash
})

// Authenticate checks the password of an enabled user. Unknown users and
// wrong passwords are indistinguishable to the caller. A disabled user with a
// correct password is returned together with ErrUserDisabled.
func (s *UserService) Authenticate(ctx context.Context, email string, password string) (*model.User, error) {
	user, err := s.GetUserByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) || errors.Is(err, ErrInvalidEmail) {
		compareHashAndPassword(dummyPasswordHash(), []byte(password))
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := compareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if user.Disabled {
		return user, ErrUserDisabled
	}
	return user, nil
}

// HashPassword returns the bcrypt hash stored in model.User.Password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func NewUserService(store CredentialStore) *UserService {
	return &UserService{store: store}
}
