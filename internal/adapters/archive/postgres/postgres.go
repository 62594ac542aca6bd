// Package postgres implements a Postgres-backed sample archive with
// retryable operations.
package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/lib/pq"

	"github.com/vshulcz/heapwatch/internal/domain"
	"github.com/vshulcz/heapwatch/internal/misc"
	"github.com/vshulcz/heapwatch/internal/ports"
)

// Archive persists samples and snapshots in Postgres.
type Archive struct {
	db *sql.DB
}

var _ ports.SampleArchive = (*Archive)(nil)

var retryablePGCodes = map[string]struct{}{
	pgerrcode.ConnectionException:                           {},
	pgerrcode.ConnectionDoesNotExist:                        {},
	pgerrcode.ConnectionFailure:                             {},
	pgerrcode.SQLClientUnableToEstablishSQLConnection:       {},
	pgerrcode.SQLServerRejectedEstablishmentOfSQLConnection: {},
	pgerrcode.TransactionResolutionUnknown:                  {},
	pgerrcode.ProtocolViolation:                             {},
	pgerrcode.SerializationFailure:                          {},
	pgerrcode.DeadlockDetected:                              {},
	pgerrcode.LockNotAvailable:                              {},
	pgerrcode.TooManyConnections:                            {},
	pgerrcode.AdminShutdown:                                 {},
	pgerrcode.CrashShutdown:                                 {},
	pgerrcode.CannotConnectNow:                              {},
	pgerrcode.QueryCanceled:                                 {},
}

// New returns a Postgres-backed archive.
func New(db *sql.DB) *Archive {
	return &Archive{db: db}
}

// SaveSample appends one observation to the samples table.
func (a *Archive) SaveSample(ctx context.Context, s domain.MetricSample) error {
	const q = `
INSERT INTO samples (observed_at, heap_used, heap_total, heap_limit, dom_nodes, event_listeners)
VALUES ($1, $2, $3, $4, $5, $6);`
	op := func() error {
		_, err := a.db.ExecContext(ctx, q, s.Timestamp,
			nullUint(s.HeapUsed), nullUint(s.HeapTotal), nullUint(s.HeapLimit),
			nullInt(s.DOMNodes), nullInt(s.EventListeners))
		return err
	}
	return misc.Retry(ctx, misc.DefaultBackoff, isRetryablePG, op)
}

// SaveSnapshot upserts a named capture; last write wins, matching the
// in-memory store's semantics.
func (a *Archive) SaveSnapshot(ctx context.Context, s domain.Snapshot) error {
	const q = `
INSERT INTO snapshots (id, captured_at, heap_used, heap_total, heap_limit, dom_nodes, event_listeners)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id)
DO UPDATE SET captured_at=EXCLUDED.captured_at, heap_used=EXCLUDED.heap_used,
  heap_total=EXCLUDED.heap_total, heap_limit=EXCLUDED.heap_limit,
  dom_nodes=EXCLUDED.dom_nodes, event_listeners=EXCLUDED.event_listeners;`
	op := func() error {
		_, err := a.db.ExecContext(ctx, q, s.ID, s.Timestamp,
			nullUint(s.Sample.HeapUsed), nullUint(s.Sample.HeapTotal), nullUint(s.Sample.HeapLimit),
			nullInt(s.Sample.DOMNodes), nullInt(s.Sample.EventListeners))
		return err
	}
	return misc.Retry(ctx, misc.DefaultBackoff, isRetryablePG, op)
}

// Snapshots loads all archived captures ordered by capture time.
func (a *Archive) Snapshots(ctx context.Context) ([]domain.Snapshot, error) {
	const q = `
SELECT id, captured_at, heap_used, heap_total, heap_limit, dom_nodes, event_listeners
FROM snapshots ORDER BY captured_at, id`

	var result []domain.Snapshot
	op := func() error {
		rows, err := a.db.QueryContext(ctx, q)
		if err != nil {
			return err
		}
		defer func() {
			_ = rows.Close()
		}()

		var out []domain.Snapshot
		for rows.Next() {
			var (
				id                    string
				at                    time.Time
				used, total, limit    sql.NullInt64
				domNodes, evListeners sql.NullInt64
			)
			if err := rows.Scan(&id, &at, &used, &total, &limit, &domNodes, &evListeners); err != nil {
				return err
			}
			snap := domain.Snapshot{ID: id, Timestamp: at}
			snap.Sample = domain.MetricSample{
				Timestamp:      at,
				HeapUsed:       uintPtr(used),
				HeapTotal:      uintPtr(total),
				HeapLimit:      uintPtr(limit),
				DOMNodes:       intPtr(domNodes),
				EventListeners: intPtr(evListeners),
			}
			out = append(out, snap)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		result = out
		return nil
	}
	if err := misc.Retry(ctx, misc.DefaultBackoff, isRetryablePG, op); err != nil {
		return nil, err
	}
	return result, nil
}

// Ping verifies the database connection using a short-lived context.
func (a *Archive) Ping(ctx context.Context) error {
	if a.db == nil {
		return errors.New("db not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	op := func() error {
		return a.db.PingContext(ctx)
	}
	return misc.Retry(ctx, misc.DefaultBackoff, isRetryablePG, op)
}

// IsRetryable reports whether the error should trigger a retry according to Postgres semantics.
func IsRetryable(err error) bool {
	return isRetryablePG(err)
}

func isRetryablePG(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var pqe *pq.Error
	if errors.As(err, &pqe) {
		return isRetryablePGCode(string(pqe.Code))
	}
	return false
}

func isRetryablePGCode(code string) bool {
	if _, ok := retryablePGCodes[code]; ok {
		return true
	}
	if strings.HasPrefix(code, "08") {
		return true
	}
	if strings.HasPrefix(code, "40") {
		return true
	}
	return false
}

func nullUint(v *uint64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func uintPtr(v sql.NullInt64) *uint64 {
	if !v.Valid {
		return nil
	}
	u := uint64(v.Int64)
	return &u
}

func intPtr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	i := v.Int64
	return &i
}
