package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"github.com/thereayou/loci-chat/internal/apperrors"
	"github.com/thereayou/loci-chat/internal/logger"
)

// classify turns driver errors into typed errors. Typed errors pass through.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return err
	}

	if isTransient(err) {
		return apperrors.Transient(err)
	}

	logger.L().Error().Err(err).Msg("unexpected database error")
	return apperrors.Internal(err)
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, "08"): // connection exception
			return true
		case pgErr.Code == "40001", pgErr.Code == "40P01": // serialization failure, deadlock
			return true
		case strings.HasPrefix(pgErr.Code, "57P"): // admin shutdown, cannot connect now
			return true
		}
		return false
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code == sqlite3.ErrBusy || liteErr.Code == sqlite3.ErrLocked
	}
	return false
}
