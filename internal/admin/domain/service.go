package domain

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/adminwatch/internal/apperror"
)

var (
	ErrIdentityNotFound = fmt.Errorf("%w: admin_identity_not_found", apperror.ErrUnauthorized)
	ErrIdentityInactive = fmt.Errorf("%w: admin_identity_inactive", apperror.ErrUnauthorized)
	ErrAccountNotFound  = fmt.Errorf("%w: target_not_found", apperror.ErrNotFound)
	ErrNoContact        = fmt.Errorf("%w: recipient_contact_not_found", apperror.ErrNotFound)
)

type Service interface {
	// ActiveIdentity reloads the identity from the store on every call.
	ActiveIdentity(ctx context.Context, id snowflake.ID) (*Identity, error)
	ListActiveIdentities(ctx context.Context) ([]Identity, error)
	// ContactEmail resolves a notification recipient to an address. The id is
	// an admin identity id or, for business alerts, an account id.
	ContactEmail(ctx context.Context, recipientID snowflake.ID) (string, error)
}
