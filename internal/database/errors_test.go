package database

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"github.com/thereayou/loci-chat/internal/apperrors"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want apperrors.Kind
	}{
		{"deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), apperrors.KindTransient},
		{"bad conn", driver.ErrBadConn, apperrors.KindTransient},
		{"pg serialization", &pgconn.PgError{Code: "40001"}, apperrors.KindTransient},
		{"pg connection", &pgconn.PgError{Code: "08006"}, apperrors.KindTransient},
		{"pg shutdown", &pgconn.PgError{Code: "57P01"}, apperrors.KindTransient},
		{"pg unique", &pgconn.PgError{Code: "23505"}, apperrors.KindInternal},
		{"sqlite busy", sqlite3.Error{Code: sqlite3.ErrBusy}, apperrors.KindTransient},
		{"sqlite constraint", sqlite3.Error{Code: sqlite3.ErrConstraint}, apperrors.KindInternal},
		{"typed", apperrors.ErrRoomFull, apperrors.KindInvariant},
		{"other", errors.New("boom"), apperrors.KindInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := apperrors.KindOf(classify(tc.err)); got != tc.want {
				t.Fatalf("classify(%v) = %s, want %s", tc.err, got, tc.want)
			}
		})
	}
	if classify(nil) != nil {
		t.Fatal("nil must stay nil")
	}
}

func TestInternalErrorsHideDriverText(t *testing.T) {
	err := classify(errors.New(`pq: relation "rooms" does not exist`))
	if msg := apperrors.PublicMessage(err); msg != apperrors.ErrInternal.Message {
		t.Fatalf("driver text leaked: %q", msg)
	}
}
