package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/khanghh/plantgate/internal/auth"
)

type UserHandler struct {
	scopes auth.ScopeMap
}

func (h *UserHandler) GetMe(ctx *fiber.Ctx) error {
	user, err := authorizedUser(ctx)
	if err != nil {
		return err
	}

	scopes := make([]string, 0, len(user.Scopes))
	for _, scope := range user.Scopes {
		scopes = append(scopes, h.scopes.Name(scope))
	}
	info := UserInfoResponse{
		Email:         user.Subject,
		Organizations: user.Organizations,
		Plants:        user.Plants,
		Machines:      user.Machines,
		Scopes:        scopes,
		ExpiresAt:     user.ExpiresAt,
	}
	if user.User != nil {
		info.UserID = user.User.ID
	}
	return ctx.JSON(NewDataResponse(info))
}

func NewUserHandler(scopes auth.ScopeMap) *UserHandler {
	return &UserHandler{
		scopes: scopes,
	}
}
