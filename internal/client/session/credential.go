package session

import (
	"errors"
	"strings"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/golang-jwt/jwt/v5"
)

var ErrNoToken = errors.New("login response carries no token")

// expirationLayouts are the formats the backend has been seen to use for
// the login expiration. Layouts without a zone are read as UTC.
var expirationLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"01/02/2006 15:04:05",
	"02.01.2006 15:04:05",
}

func parseExpiration(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range expirationLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func unverifiedClaims(token string) (jwt.MapClaims, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, false
	}
	return claims, true
}

// TokenExpiry reads the exp claim of a JWT without verifying its signature.
// The token is only inspected locally to decide whether it is worth sending.
func TokenExpiry(token string) (time.Time, bool) {
	claims, ok := unverifiedClaims(token)
	if !ok {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.UTC(), true
}

// FromLogin builds the credential of a successful online login.
func FromLogin(resp models.LoginResponse, creds models.Credentials, now time.Time) (*models.SessionCredential, error) {
	if strings.TrimSpace(resp.Token) == "" {
		return nil, ErrNoToken
	}

	cred := &models.SessionCredential{
		Token:         resp.Token,
		UserID:        resp.UserID,
		UserName:      resp.UserName,
		CompanyID:     resp.CompanyID,
		OnlineAllowed: true,
		IssuedAt:      now.UTC(),
	}

	if exp, ok := parseExpiration(resp.Expiration); ok {
		cred.ExpiresAt = exp
	} else if exp, ok := TokenExpiry(resp.Token); ok {
		cred.ExpiresAt = exp
	}

	if cred.UserName == "" {
		if claims, ok := unverifiedClaims(resp.Token); ok {
			if sub, err := claims.GetSubject(); err == nil {
				cred.UserName = sub
			}
		}
	}
	if cred.UserName == "" {
		cred.UserName = creds.UserName
	}
	if cred.CompanyID == 0 {
		cred.CompanyID = creds.CompanyID
	}
	return cred, nil
}

// Offline builds a session pinned to offline mode for a user verified
// against the locally cached verifier.
func Offline(creds models.Credentials, now time.Time) *models.SessionCredential {
	return &models.SessionCredential{
		UserName:      creds.UserName,
		CompanyID:     creds.CompanyID,
		OnlineAllowed: false,
		IssuedAt:      now.UTC(),
	}
}
