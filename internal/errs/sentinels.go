// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrVersionConflict indicates a concurrent append raced for the same ledger block.
	ErrVersionConflict = errors.New("version conflict")

	// ErrUnauthorized indicates failed authentication/authorization.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited indicates temporary login lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., address taken).
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidAddress indicates a malformed account address.
	ErrInvalidAddress = errors.New("invalid address")

	// ErrNoEncryptionKey indicates the account has no registered encryption public key.
	ErrNoEncryptionKey = errors.New("no encryption public key")

	// ErrEncryption indicates the document could not be encrypted for the recipient.
	ErrEncryption = errors.New("encryption failed")

	// ErrInvalidArgument indicates a request that fails validation before touching storage.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrIndexOutOfRange indicates a field index outside the current field list.
	ErrIndexOutOfRange = errors.New("index out of range")
)
