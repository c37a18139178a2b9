package identity

import (
	"log/slog"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// fallbackUsername names an account whose id_token was missing or unreadable.
const fallbackUsername = "default"

// idClaims are the id_token claims used to name an account.
type idClaims struct {
	PreferredUsername string `json:"preferred_username"`
	Email             string `json:"email"`
	Name              string `json:"name"`
	ObjectID          string `json:"oid"`
	jwt.RegisteredClaims
}

func (c idClaims) username() string {
	switch {
	case c.PreferredUsername != "":
		return c.PreferredUsername
	case c.Email != "":
		return c.Email
	default:
		return fallbackUsername
	}
}

// claimsFromToken reads the id_token returned with tok. The token arrived
// over TLS straight from the authority, so its signature is not checked.
func claimsFromToken(tok *oauth2.Token, logger *slog.Logger) idClaims {
	raw, _ := tok.Extra("id_token").(string)
	if raw == "" {
		logger.Warn("token response carried no id_token")
		return idClaims{}
	}

	var claims idClaims
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil {
		logger.Warn("failed to parse id_token", slog.String("error", err.Error()))
		return idClaims{}
	}

	return claims
}
