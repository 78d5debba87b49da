package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/khanghh/plantgate/internal/audit"
	"github.com/khanghh/plantgate/internal/auth"
)

type TokenHandler struct {
	tokenService TokenService
}

// recordFailure fills record from err and stores it.
func recordFailure(ctx *fiber.Ctx, record audit.TokenRecord, err error) {
	record.Reason = err.Error()
	var authErr *auth.AuthenticationError
	if errors.As(err, &authErr) {
		record.Reason = authErr.Reason
		if authErr.Subject != "" {
			record.Email = authErr.Subject
		}
		record.UserID = authErr.UserID
	}
	audit.RecordToken(ctx.Context(), record)
}

func recordSuccess(ctx *fiber.Ctx, record audit.TokenRecord, pair *auth.TokenPair) {
	record.Success = true
	record.Email = pair.Subject
	record.UserID = pair.UserID
	audit.RecordToken(ctx.Context(), record)
}

// PostToken implements the password grant.
func (h *TokenHandler) PostToken(ctx *fiber.Ctx) error {
	email := ctx.FormValue("username")
	password := ctx.FormValue("password")
	if email == "" || password == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(
			NewErrorResponse(fiber.StatusBadRequest, "Missing required parameters"),
		)
	}

	record := audit.TokenRecord{Email: email, IP: ctx.IP(), UserAgent: ctx.Get(fiber.HeaderUserAgent)}
	pair, err := h.tokenService.IssueTokenPair(ctx.Context(), email, password)
	if err != nil {
		recordFailure(ctx, record, err)
		return err
	}
	recordSuccess(ctx, record, pair)
	return ctx.JSON(pair)
}

// PostRefresh issues a new access token from a refresh token.
func (h *TokenHandler) PostRefresh(ctx *fiber.Ctx) error {
	var req refreshTokenRequest
	if err := ctx.BodyParser(&req); err != nil || req.RefreshToken == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(
			NewErrorResponse(fiber.StatusBadRequest, "Missing required parameters"),
		)
	}

	record := audit.TokenRecord{Refresh: true, IP: ctx.IP(), UserAgent: ctx.Get(fiber.HeaderUserAgent)}
	pair, err := h.tokenService.AccessTokenFromRefreshToken(ctx.Context(), req.RefreshToken)
	if err != nil {
		recordFailure(ctx, record, err)
		return err
	}
	recordSuccess(ctx, record, pair)
	return ctx.JSON(pair)
}

func NewTokenHandler(tokenService TokenService) *TokenHandler {
	return &TokenHandler{
		tokenService: tokenService,
	}
}
