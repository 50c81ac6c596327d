package mysql

import "time"

// Config holds MySQL connection and behavior settings
type Config struct {
	// DSN is the go-sql-driver DSN. parseTime=true is required so DATETIME
	// columns scan into time.Time.
	DSN string

	// Pool settings
	MaxOpenConns int
	MaxIdleConns int

	// OpTimeout bounds every statement, including waiting for a pooled
	// connection. Pool exhaustion therefore surfaces as a bounded failure
	// rather than an indefinite hang.
	OpTimeout time.Duration
}

// DefaultConfig returns sensible defaults for MySQL configuration
func DefaultConfig() Config {
	return Config{
		MaxOpenConns: 10,
		MaxIdleConns: 2,
		OpTimeout:    5 * time.Second,
	}
}
