package store

import (
	"context"
	"database/sql"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// querier is satisfied by both *sql.DB and *sql.Tx so read helpers can run
// inside or outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// marshalTime converts a timestamp to Unix nanoseconds for storage.
func marshalTime(t time.Time) int64 {
	return t.UTC().UnixNano()
}

// unmarshalTime converts stored Unix nanoseconds back to a UTC time.
func unmarshalTime(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

// DayKey is the UTC YYYYMMDD bucket used for batch numbering.
func DayKey(t time.Time) string {
	return t.UTC().Format("20060102")
}

// normalizeText NFC-normalizes free text at the storage boundary so that
// visually identical notes compare equal.
func normalizeText(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// nullString maps "" to SQL NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

const cursorPrefix = "seq:"

// encodeCursor produces an opaque page cursor pointing below seq.
func encodeCursor(seq int64) string {
	return base64.RawURLEncoding.EncodeToString([]byte(cursorPrefix + strconv.FormatInt(seq, 10)))
}

// decodeCursor parses a cursor produced by encodeCursor.
func decodeCursor(cursor string) (int64, error) {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return 0, fmt.Errorf("decode cursor: %w", err)
	}
	s := string(raw)
	if !strings.HasPrefix(s, cursorPrefix) {
		return 0, fmt.Errorf("decode cursor: malformed %q", s)
	}
	seq, err := strconv.ParseInt(strings.TrimPrefix(s, cursorPrefix), 10, 64)
	if err != nil || seq <= 0 {
		return 0, fmt.Errorf("decode cursor: malformed %q", s)
	}
	return seq, nil
}
