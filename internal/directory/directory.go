// Package directory holds the contracts for the external identity and
// user-directory collaborators. The messaging core depends on these
// interfaces only; authentication and the organization screens live in
// other services.
package directory

import "context"

// Identity is the resolved profile of an authenticated or looked-up user.
type Identity struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

// TokenVerifier validates a bearer token and resolves the caller identity.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// UserDirectory resolves participant candidates from the organization
// directory.
type UserDirectory interface {
	User(ctx context.Context, userID string) (Identity, error)
	Users(ctx context.Context, userIDs []string) ([]Identity, error)
}
