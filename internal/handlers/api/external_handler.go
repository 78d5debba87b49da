package api

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/proxy"
	"github.com/khanghh/plantgate/internal/extauth"
)

// ExternalHandler forwards requests to the external system on behalf of the
// caller, using the caller's cached external credential.
type ExternalHandler struct {
	credentials CredentialsProvider
}

func (h *ExternalHandler) Forward(ctx *fiber.Ctx) error {
	user, err := authorizedUser(ctx)
	if err != nil {
		return err
	}
	if user.User == nil || user.User.ExternalUsername == nil {
		return extauth.ErrExternalAccountNotLinked
	}

	creds, err := h.credentials.Credentials(ctx.Context(), *user.User.ExternalUsername)
	if err != nil {
		return err
	}

	target := strings.TrimRight(creds.InstanceURL, "/") + "/" + ctx.Params("*")
	if query := ctx.Request().URI().QueryString(); len(query) > 0 {
		target += "?" + string(query)
	}
	ctx.Request().Header.Set(fiber.HeaderAuthorization, "Bearer "+creds.AccessToken)
	ctx.Request().Header.Del(fiber.HeaderCookie)
	if err := proxy.Do(ctx, target); err != nil {
		return fiber.NewError(fiber.StatusBadGateway, "External service unavailable")
	}
	ctx.Response().Header.Del(fiber.HeaderServer)
	return nil
}

func NewExternalHandler(credentials CredentialsProvider) *ExternalHandler {
	return &ExternalHandler{
		credentials: credentials,
	}
}
