package postgres

import (
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/kevin07696/card-reconciliation/internal/domain/ports"
)

// nullText creates a pgtype.Text with empty string handling
func nullText(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}

// nullTextPtr maps a nil or empty pointer to NULL
func nullTextPtr(s *string) pgtype.Text {
	if s == nil {
		return pgtype.Text{Valid: false}
	}
	return nullText(*s)
}

// textPtr converts a nullable text column back to a pointer
func textPtr(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	s := t.String
	return &s
}

func nullDate(t *time.Time) pgtype.Date {
	if t == nil {
		return pgtype.Date{Valid: false}
	}
	return pgtype.Date{Time: *t, Valid: true}
}

func datePtr(d pgtype.Date) *time.Time {
	if !d.Valid {
		return nil
	}
	t := d.Time
	return &t
}

// decimalToNumeric converts decimal.Decimal to pgtype.Numeric
func decimalToNumeric(d decimal.Decimal) (pgtype.Numeric, error) {
	var n pgtype.Numeric
	if err := n.Scan(d.String()); err != nil {
		return n, fmt.Errorf("convert %s to numeric: %w", d.String(), err)
	}
	return n, nil
}

// pgNumericToDecimal converts pgtype.Numeric to decimal.Decimal
func pgNumericToDecimal(n pgtype.Numeric) (decimal.Decimal, error) {
	if !n.Valid {
		return decimal.Zero, nil
	}
	var dec decimal.Decimal
	str, err := n.MarshalJSON()
	if err != nil {
		return dec, fmt.Errorf("marshal numeric: %w", err)
	}
	// Remove quotes from JSON string
	if len(str) >= 2 && str[0] == '"' && str[len(str)-1] == '"' {
		str = str[1 : len(str)-1]
	}
	return decimal.NewFromString(string(str))
}

// executor picks the caller's transaction or falls back to the pool
func executor(db ports.DBTX, fallback ports.DBPort) ports.DBTX {
	if db != nil {
		return db
	}
	return fallback.GetDB()
}

// lockNotAvailable is SQLSTATE 55P03, raised when lock_timeout expires
const lockNotAvailable = "55P03"

func isLockNotAvailable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == lockNotAvailable
}
