package middlewares

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/khanghh/plantgate/internal/auth"
	"github.com/khanghh/plantgate/internal/extauth"
	"github.com/khanghh/plantgate/internal/handlers/api"
)

func ErrorHandler(ctx *fiber.Ctx, err error) error {
	var (
		authErr  *auth.AuthenticationError
		permErr  *auth.InsufficientPermissionError
		extErr   *extauth.ExternalServiceError
		fiberErr *fiber.Error
	)
	switch {
	case errors.As(err, &authErr):
		slog.Debug("Authentication failed", "path", ctx.Path(), "reason", authErr.Reason)
		ctx.Set(fiber.HeaderWWWAuthenticate, "Bearer")
		return ctx.Status(fiber.StatusUnauthorized).JSON(
			api.NewErrorResponse(fiber.StatusUnauthorized, "Could not validate credentials"),
		)
	case errors.As(err, &permErr):
		return ctx.Status(fiber.StatusForbidden).JSON(
			api.NewErrorResponse(fiber.StatusForbidden, "Not enough permissions for this api"),
		)
	case errors.Is(err, extauth.ErrExternalAccountNotLinked):
		return ctx.Status(fiber.StatusForbidden).JSON(
			api.NewErrorResponse(fiber.StatusForbidden, "No external account is linked to this user"),
		)
	case errors.As(err, &extErr):
		code := extErr.StatusCode
		if code < fiber.StatusBadRequest {
			code = fiber.StatusBadGateway
		}
		slog.Warn("External service error", "path", ctx.Path(), "status", extErr.StatusCode, "error", err)
		return ctx.Status(code).JSON(
			api.NewErrorResponse(code, "External service error", api.APIErrorDetail{
				Domain:  "external",
				Reason:  extErr.Code,
				Message: extErr.Description,
			}),
		)
	case errors.As(err, &fiberErr):
		return ctx.Status(fiberErr.Code).JSON(api.NewErrorResponse(fiberErr.Code, fiberErr.Message))
	default:
		slog.Error("Unhandled error", "path", ctx.Path(), "error", err)
		return ctx.Status(fiber.StatusInternalServerError).JSON(
			api.NewErrorResponse(fiber.StatusInternalServerError, "Internal server error"),
		)
	}
}
