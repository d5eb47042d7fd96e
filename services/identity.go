package services

import "github.com/postgen/postgen/common"

// Identity is the authenticated caller, resolved once per request and passed
// explicitly into every operation that needs it. The zero value is anonymous.
type Identity struct {
	UserID   uint
	Username string
}

// Anonymous is the identity of an unauthenticated caller.
var Anonymous = Identity{}

// Authenticated reports whether the identity belongs to a logged in user.
func (i Identity) Authenticated() bool {
	return i.UserID != 0
}

// ErrNotAuthenticated is returned to anonymous callers of operations that need a user.
var ErrNotAuthenticated = common.Forbidden("User is not authenticated")

// ErrUnknownUser is returned when a valid session names a user that no longer exists.
var ErrUnknownUser = common.Forbidden("User no longer exists")
