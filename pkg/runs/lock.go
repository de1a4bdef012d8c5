package runs

import (
	"context"
	"database/sql"
	"database/sql/driver"

	kitlog "github.com/go-kit/kit/log"
	"github.com/lawrencejones/pglake/pkg/imports"
	"github.com/pkg/errors"
)

var _ imports.Locker = &AdvisoryLock{}

// AdvisoryLock holds a Postgres session-level advisory lock for the duration of a run.
// The lock is tied to the session, so we pin a connection from the pool until unlock,
// and a crashed process releases the lock when its connection drops.
type AdvisoryLock struct {
	logger kitlog.Logger
	db     *sql.DB
	name   string
}

// NewAdvisoryLock creates a lock identified by name. Runs that should never overlap, such
// as those syncing the same source namespace, must share a name.
func NewAdvisoryLock(logger kitlog.Logger, db *sql.DB, name string) *AdvisoryLock {
	return &AdvisoryLock{logger: logger, db: db, name: name}
}

// Lock returns imports.ErrRunInProgress if another session holds the lock.
func (l *AdvisoryLock) Lock(ctx context.Context) (func(context.Context) error, error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to acquire connection for advisory lock")
	}

	var acquired bool
	query := `select pg_try_advisory_lock(hashtext($1));`
	if err := conn.QueryRowContext(ctx, query, l.name).Scan(&acquired); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "failed to take advisory lock")
	}

	if !acquired {
		conn.Close()
		return nil, errors.Wrapf(imports.ErrRunInProgress, "lock %s is held", l.name)
	}

	l.logger.Log("event", "lock.acquired", "lock", l.name)

	// Unlock must reach the database even if the run was cancelled. Should it fail, the
	// session is discarded rather than returned to the pool still holding the lock.
	unlock := func(ctx context.Context) (err error) {
		defer func() {
			if err != nil {
				conn.Raw(func(interface{}) error { return driver.ErrBadConn })
			}
			conn.Close()
		}()

		var released bool
		query := `select pg_advisory_unlock(hashtext($1));`
		if err := conn.QueryRowContext(context.WithoutCancel(ctx), query, l.name).Scan(&released); err != nil {
			return errors.Wrap(err, "failed to release advisory lock")
		}

		if !released {
			return errors.Errorf("advisory lock %s was not held at unlock", l.name)
		}

		l.logger.Log("event", "lock.released", "lock", l.name)
		return nil
	}

	return unlock, nil
}
