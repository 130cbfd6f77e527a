// Package limiter throttles ledger account logins.
package limiter

import (
	"context"
	"time"

	"github.com/and161185/doc-issuer/internal/model"
)

// Limiter tracks failed logins per account and client host. Hosts are passed as HashIP output.
type Limiter interface {
	// Allow reports whether a login may proceed; when it may not, the duration says for how long.
	Allow(ctx context.Context, addr model.Address, ipHash []byte) (bool, time.Duration, error)
	// Success forgets earlier failures of the pair.
	Success(ctx context.Context, addr model.Address, ipHash []byte) error
	// Failure counts one failed login and reports whether the pair is now blocked.
	Failure(ctx context.Context, addr model.Address, ipHash []byte) (bool, time.Duration, error)
}
