package api

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/khanghh/plantgate/internal/auth"
	"github.com/khanghh/plantgate/internal/extauth"
	"github.com/khanghh/plantgate/params"
)

type TokenService interface {
	IssueTokenPair(ctx context.Context, email string, password string) (*auth.TokenPair, error)
	AccessTokenFromRefreshToken(ctx context.Context, refreshToken string) (*auth.TokenPair, error)
}

type CredentialsProvider interface {
	Credentials(ctx context.Context, externalUsername string) (*extauth.Credentials, error)
}

// authorizedUser returns the identity stored by the scope middleware.
func authorizedUser(ctx *fiber.Ctx) (*auth.AuthorizedUser, error) {
	user, ok := ctx.Locals(params.AuthorizedUserKey).(*auth.AuthorizedUser)
	if !ok || user == nil {
		return nil, auth.NewAuthenticationError("request is not authenticated")
	}
	return user, nil
}
