package extauth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/khanghh/plantgate/internal/metrics"
	"github.com/khanghh/plantgate/params"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/jwt"
)

// ExchangedToken is a bearer credential issued by the identity provider.
type ExchangedToken struct {
	AccessToken string
	InstanceURL string
	Expiry      time.Time // zero when the provider reports none
}

// Provider exchanges a subject for a bearer credential of the external
// system.
type Provider interface {
	Exchange(ctx context.Context, subject string) (*ExchangedToken, error)
}

type ProviderConfig struct {
	LoginURL   string
	ClientID   string
	PrivateKey []byte // RSA key in PEM form
	HTTPClient *http.Client
}

// JWTBearerProvider performs the OAuth 2.0 JWT bearer grant with an assertion
// signed by the service key.
type JWTBearerProvider struct {
	loginURL   string
	clientID   string
	privateKey []byte
	httpClient *http.Client
}

func (p *JWTBearerProvider) Exchange(ctx context.Context, subject string) (*ExchangedToken, error) {
	cfg := &jwt.Config{
		Email:      p.clientID,
		PrivateKey: p.privateKey,
		Subject:    subject,
		TokenURL:   p.loginURL + params.ExternalTokenPath,
		Audience:   p.loginURL,
		Expires:    params.ExternalAssertionExpiry,
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)

	start := time.Now()
	token, err := cfg.TokenSource(ctx).Token()
	metrics.ExternalExchangeDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, toExternalServiceError(err)
	}
	if token.AccessToken == "" {
		return nil, &ExternalServiceError{StatusCode: http.StatusBadGateway, Err: ErrEmptyAccessToken}
	}
	exchanged := &ExchangedToken{
		AccessToken: token.AccessToken,
		Expiry:      token.Expiry,
	}
	if instanceURL, ok := token.Extra("instance_url").(string); ok {
		exchanged.InstanceURL = instanceURL
	}
	return exchanged, nil
}

type providerError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func toExternalServiceError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if !errors.As(err, &retrieveErr) {
		return &ExternalServiceError{Err: err}
	}
	svcErr := &ExternalServiceError{Code: retrieveErr.ErrorCode, Description: retrieveErr.ErrorDescription}
	if retrieveErr.Response != nil {
		svcErr.StatusCode = retrieveErr.Response.StatusCode
	}
	var body providerError
	if json.Unmarshal(retrieveErr.Body, &body) == nil {
		if body.Error != "" {
			svcErr.Code = body.Error
		}
		if body.ErrorDescription != "" {
			svcErr.Description = body.ErrorDescription
		}
	}
	if svcErr.Code == "" && svcErr.Description == "" {
		svcErr.Description = strings.TrimSpace(string(retrieveErr.Body))
	}
	return svcErr
}

func NewJWTBearerProvider(cfg ProviderConfig) *JWTBearerProvider {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: params.ExternalHTTPTimeout}
	}
	return &JWTBearerProvider{
		loginURL:   strings.TrimRight(cfg.LoginURL, "/"),
		clientID:   cfg.ClientID,
		privateKey: cfg.PrivateKey,
		httpClient: client,
	}
}
