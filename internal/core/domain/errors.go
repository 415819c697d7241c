package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrPermissionDenied indicates the viewer may not read a folder.
	// Raised by mailboxes; the walker treats it as a skipped subtree.
	ErrPermissionDenied = errors.New("permission denied")

	// Authentication Errors.

	// ErrUnauthorized indicates a missing or invalid session token.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates an authenticated caller may not read the requested item.
	ErrForbidden = errors.New("not authorized to access requested item")

	// Entity Errors.
	// These reject a single entity and never abort a crawl.

	// ErrNoEmail indicates a raw contact has no usable email address.
	ErrNoEmail = errors.New("no email")

	// ErrInvalidEmail indicates a raw contact's email is syntactically invalid.
	ErrInvalidEmail = errors.New("invalid email")

	// ErrEmptyGroup indicates a group has no resolvable members.
	ErrEmptyGroup = errors.New("empty group")

	// ErrGroupDecode indicates a group's member blob could not be decoded.
	ErrGroupDecode = errors.New("unable to decode contact group")

	// Delegation Errors.

	// ErrDelegationFailed indicates a remote peer could not serve a subtree.
	ErrDelegationFailed = errors.New("delegation failed")

	// ErrMissingToken indicates no session token is available for delegation.
	ErrMissingToken = errors.New("missing session token")
)

// IsEntityReject reports whether err rejects a single entity.
func IsEntityReject(err error) bool {
	return errors.Is(err, ErrNoEmail) ||
		errors.Is(err, ErrInvalidEmail) ||
		errors.Is(err, ErrEmptyGroup) ||
		errors.Is(err, ErrGroupDecode)
}
