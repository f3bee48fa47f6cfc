// retry.go retries sheet writes that lose a lock race.
//
// Each incr command opens the sheet database on its own, so two commands
// run side by side (a long `incr run` script and a one-off `incr set`)
// contend for the WAL write lock. busy_timeout absorbs most of that; what
// still surfaces as BUSY, LOCKED or a short WAL read is retried here with
// exponential backoff and jitter.
package store

import (
	"errors"
	"math/rand/v2"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

type retryConfig struct {
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// defaultRetryConfig gives a contended write a little over a second.
var defaultRetryConfig = retryConfig{
	maxRetries: 4,
	baseDelay:  25 * time.Millisecond,
	maxDelay:   400 * time.Millisecond,
}

// transientText matches errors that reach the store as text only.
var transientText = []string{
	"SQLITE_BUSY",
	"SQLITE_LOCKED",
	"IOERR_SHORT_READ",
	"database is locked",
	"database table is locked",
}

// isTransientSQLiteErr reports whether err is worth retrying. Driver errors
// are classified by result code; anything else by its message.
func isTransientSQLiteErr(err error) bool {
	if err == nil {
		return false
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		code := se.Code()
		switch code & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return true
		}
		return code == sqlite3.SQLITE_IOERR_SHORT_READ
	}
	msg := err.Error()
	for _, marker := range transientText {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// retryOp runs fn until it succeeds, fails with a non-transient error, or
// cfg.maxRetries retries are used up. The last error is returned.
func retryOp(cfg retryConfig, fn func() error) error {
	err := fn()
	for attempt := 0; attempt < cfg.maxRetries && isTransientSQLiteErr(err); attempt++ {
		time.Sleep(backoffDelay(cfg, attempt))
		err = fn()
	}
	return err
}

// backoffDelay is min(baseDelay<<attempt, maxDelay) plus up to baseDelay
// of jitter.
func backoffDelay(cfg retryConfig, attempt int) time.Duration {
	delay := cfg.baseDelay << uint(attempt)
	if delay > cfg.maxDelay || delay <= 0 {
		delay = cfg.maxDelay
	}
	return delay + time.Duration(rand.Int64N(int64(cfg.baseDelay)))
}
