// Package sqlstore implements the scheduler repositories on database/sql. Engine specifics
// (placeholder syntax, error classification) are supplied through a Dialect so the same
// queries run on SQLite and PostgreSQL.
package sqlstore

import (
	"errors"
	"strconv"
	"strings"
)

// ErrBusy marks a transient lock or serialization failure that may succeed when retried.
var ErrBusy = errors.New("sqlstore: database busy")

// Dialect captures what differs between database engines.
type Dialect struct {
	Name string
	// Numbered switches "?" placeholders to "$1", "$2", ...
	Numbered bool
	// Classify maps a driver error to a persistence sentinel or ErrBusy. It returns nil when
	// the error is not recognised.
	Classify func(err error) error
}

// Rebind rewrites "?" placeholders for the dialect. Question marks inside single quoted
// literals are left alone.
func (d Dialect) Rebind(query string) string {
	if !d.Numbered || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	quoted := false
	for _, r := range query {
		switch {
		case r == '\'':
			quoted = !quoted
			b.WriteRune(r)
		case r == '?' && !quoted:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
