package middlewares

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/khanghh/plantgate/internal/auth"
	"github.com/khanghh/plantgate/params"
)

type TokenVerifier interface {
	Verify(ctx context.Context, token string, required ...auth.PermissionScope) (*auth.AuthorizedUser, error)
}

func bearerToken(ctx *fiber.Ctx) string {
	header := ctx.Get(fiber.HeaderAuthorization)
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// RequireScopes verifies the bearer token of the request and requires at
// least one of scopes. The verified identity is stored in Locals.
func RequireScopes(verifier TokenVerifier, scopes ...auth.PermissionScope) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		token := bearerToken(ctx)
		if token == "" {
			return auth.NewAuthenticationError("missing bearer token")
		}
		user, err := verifier.Verify(ctx.Context(), token, scopes...)
		if err != nil {
			return err
		}
		ctx.Locals(params.AuthorizedUserKey, user)
		return ctx.Next()
	}
}
