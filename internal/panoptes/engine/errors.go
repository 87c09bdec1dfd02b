package engine

import (
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/samber/oops"
)

// ErrorCoder extracts a driver-specific error code. It reports false when it
// does not recognize err.
type ErrorCoder func(err error) (string, bool)

var (
	codersMu sync.RWMutex
	coders   []ErrorCoder
)

// RegisterErrorCoder adds a coder consulted after the built-in ones. Drivers
// that need cgo, such as SQLite, register theirs this way so the core does
// not link them.
func RegisterErrorCoder(c ErrorCoder) {
	codersMu.Lock()
	defer codersMu.Unlock()
	coders = append(coders, c)
}

type coded interface {
	Code() string
}

// ErrorCode returns the database error code carried by err, or "".
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return strconv.Itoa(int(myErr.Number))
	}

	codersMu.RLock()
	registered := coders
	codersMu.RUnlock()
	for _, c := range registered {
		if code, ok := c(err); ok {
			return code
		}
	}

	if o, ok := oops.AsOops(err); ok {
		if code := fmt.Sprint(o.Code()); code != "" && code != "<nil>" {
			return code
		}
	}

	var c coded
	if errors.As(err, &c) {
		return c.Code()
	}
	return ""
}
