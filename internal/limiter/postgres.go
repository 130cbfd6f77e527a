package limiter

import (
	"context"
	"crypto/sha256"
	"errors"
	"net"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/and161185/doc-issuer/internal/model"
)

// Config tunes the lockout policy.
type Config struct {
	Window   time.Duration // failures older than this start a fresh count
	MaxFails int           // failures within Window that trigger a block
	BlockFor time.Duration
}

// DefaultConfig blocks for 15 minutes after 5 failures within 15 minutes.
var DefaultConfig = Config{Window: 15 * time.Minute, MaxFails: 5, BlockFor: 15 * time.Minute}

// Querier is the slice of pgx the limiter needs; *pgxpool.Pool and pgx.Tx satisfy it.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PG keeps one counter row per (address, ip hash) in login_limiter.
type PG struct {
	db  Querier
	cfg Config
	now func() time.Time
}

var _ Limiter = (*PG)(nil)

// NewPG returns a limiter storing its state through db.
func NewPG(db Querier, cfg Config) *PG {
	if cfg.MaxFails <= 0 {
		cfg.MaxFails = DefaultConfig.MaxFails
	}
	return &PG{db: db, cfg: cfg, now: time.Now}
}

// HashIP returns a stable hash of the client host so raw IPs are never stored.
// The port is dropped: every new connection gets a fresh one.
func HashIP(remote string) []byte {
	if host, _, err := net.SplitHostPort(remote); err == nil {
		remote = host
	}
	h := sha256.Sum256([]byte(remote))
	return h[:]
}

const selectBlock = `SELECT blocked_until FROM login_limiter WHERE address=$1 AND ip_hash=$2`

// Allow reports whether a login may be attempted, and for how long it stays refused otherwise.
func (l *PG) Allow(ctx context.Context, addr model.Address, ipHash []byte) (bool, time.Duration, error) {
	var until time.Time
	err := l.db.QueryRow(ctx, selectBlock, string(addr), ipHash).Scan(&until)
	if errors.Is(err, pgx.ErrNoRows) {
		return true, 0, nil
	}
	if err != nil {
		return false, 0, err
	}
	if left := until.Sub(l.now()); left > 0 {
		return false, left, nil
	}
	return true, 0, nil
}

const resetCounter = `
INSERT INTO login_limiter (address, ip_hash, fail_count, blocked_until, updated_at)
VALUES ($1, $2, 0, 'epoch', $3)
ON CONFLICT (address, ip_hash)
DO UPDATE SET fail_count = 0, blocked_until = 'epoch', updated_at = EXCLUDED.updated_at`

// Success clears the counter and any block.
func (l *PG) Success(ctx context.Context, addr model.Address, ipHash []byte) error {
	_, err := l.db.Exec(ctx, resetCounter, string(addr), ipHash, l.now())
	return err
}

// recordFailure counts the attempt and places the block in one statement.
// $3 now, $4 window, $5 max fails, $6 blocked-until if the threshold is reached.
const recordFailure = `
INSERT INTO login_limiter AS l (address, ip_hash, fail_count, blocked_until, updated_at)
VALUES ($1, $2, 1, CASE WHEN $5 <= 1 THEN $6 ELSE 'epoch'::timestamptz END, $3)
ON CONFLICT (address, ip_hash) DO UPDATE SET
  fail_count = CASE WHEN EXCLUDED.updated_at - l.updated_at > $4::interval THEN 1 ELSE l.fail_count + 1 END,
  blocked_until = CASE
    WHEN (CASE WHEN EXCLUDED.updated_at - l.updated_at > $4::interval THEN 1 ELSE l.fail_count + 1 END) >= $5 THEN $6
    ELSE l.blocked_until END,
  updated_at = EXCLUDED.updated_at
RETURNING fail_count, blocked_until`

// Failure records a failed login. It reports whether the pair is now blocked and for how long.
func (l *PG) Failure(ctx context.Context, addr model.Address, ipHash []byte) (bool, time.Duration, error) {
	now := l.now()
	var (
		fails int
		until time.Time
	)
	err := l.db.QueryRow(ctx, recordFailure,
		string(addr), ipHash, now, l.cfg.Window, l.cfg.MaxFails, now.Add(l.cfg.BlockFor),
	).Scan(&fails, &until)
	if err != nil {
		return false, 0, err
	}
	if fails >= l.cfg.MaxFails && until.After(now) {
		return true, until.Sub(now), nil
	}
	return false, 0, nil
}

const purgeStale = `DELETE FROM login_limiter WHERE updated_at < $1 AND blocked_until < $2`

// Purge drops counters untouched for longer than the window whose block has expired.
// It returns the number of rows removed.
func (l *PG) Purge(ctx context.Context) (int64, error) {
	now := l.now()
	tag, err := l.db.Exec(ctx, purgeStale, now.Add(-l.cfg.Window), now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
