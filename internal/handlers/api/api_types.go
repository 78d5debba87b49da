package api

import (
	"time"

	"github.com/khanghh/plantgate/params"
)

// Google JSON API style response structures
type APIResponse struct {
	APIVersion string        `json:"apiVersion"`
	Data       any           `json:"data,omitempty"`
	Error      *APIErrorInfo `json:"error,omitempty"`
}

type APIErrorInfo struct {
	Code    int              `json:"code"`
	Message string           `json:"message"`
	Errors  []APIErrorDetail `json:"errors,omitempty"`
}

type APIErrorDetail struct {
	Domain  string `json:"domain"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

func NewDataResponse(data any) APIResponse {
	return APIResponse{APIVersion: params.APIVersion, Data: data}
}

func NewErrorResponse(code int, message string, details ...APIErrorDetail) APIResponse {
	return APIResponse{
		APIVersion: params.APIVersion,
		Error: &APIErrorInfo{
			Code:    code,
			Message: message,
			Errors:  details,
		},
	}
}

type refreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" form:"refresh_token"`
}

type UserInfoResponse struct {
	UserID        uint      `json:"userId"`
	Email         string    `json:"email"`
	Organizations any       `json:"organizations"`
	Plants        any       `json:"plants"`
	Machines      any       `json:"machines"`
	Scopes        []string  `json:"scopes"`
	ExpiresAt     time.Time `json:"expiresAt"`
}
