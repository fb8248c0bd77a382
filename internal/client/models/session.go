package models

import "time"

// Credentials are what the user types on the login screen.
type Credentials struct {
	CompanyID int64  `json:"companyId"`
	UserName  string `json:"userName"`
	Password  string `json:"password"`
}

// LoginResponse is the data part of a successful login envelope.
type LoginResponse struct {
	Token      string `json:"token"`
	Expiration string `json:"expiration"`
	UserID     int64  `json:"userId"`
	UserName   string `json:"userName"`
	CompanyID  int64  `json:"companyId"`
}

// SessionCredential is the single active session. A zero ExpiresAt means
// the expiry is unknown.
type SessionCredential struct {
	Token         string
	ExpiresAt     time.Time
	UserID        int64
	UserName      string
	CompanyID     int64
	OnlineAllowed bool
	IssuedAt      time.Time
}

func (c *SessionCredential) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// TokenValid reports whether the credential carries a bearer token that
// has not expired at now.
func (c *SessionCredential) TokenValid(now time.Time) bool {
	return c != nil && c.Token != "" && !c.Expired(now)
}

// SessionResult is returned by login.
type SessionResult struct {
	Success bool
	Offline bool
	Kind    FailureKind
	Message string
	Session *SessionCredential
}
