package client

import (
	"context"

	"github.com/dmitrijs2005/fieldsync/internal/client/models"
)

type Client interface {
	// Companies lists the companies a user can sign in to. No token needed.
	Companies(ctx context.Context) (*Result, error)
	Login(ctx context.Context, creds models.Credentials) (*Result, error)
	// FetchCatalog returns the complete remote snapshot of a catalog.
	FetchCatalog(ctx context.Context, name string) (*Result, error)
	SubmitVoucher(ctx context.Context, kind models.VoucherKind, payload any) (*Result, error)
	Authorize(ctx context.Context, action string, payload any) (*Result, error)
	Ping(ctx context.Context) error
}

// AddressSource yields the current remote base address.
type AddressSource interface {
	BaseURL(ctx context.Context) (string, error)
}

// DeviceSource yields the installation id sent with every request.
type DeviceSource interface {
	DeviceID(ctx context.Context) (string, error)
}

// TokenSource yields the bearer token of the current session.
type TokenSource interface {
	Token() string
}

// UnauthorizedHandler is told about a 401 and the token that caused it.
type UnauthorizedHandler interface {
	HandleUnauthorized(ctx context.Context, token string) bool
}
