package config

import "time"

// Database connection pool settings
const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 5 * time.Minute
)

// HTTP server timeouts
const (
	ServerRequestTimeout  = 60 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Database ping timeout for health checks
const DBPingTimeout = 5 * time.Second

// Expiry sweep interval. The sweep only keeps reads cheap; expiry
// correctness comes from the lazy check on every session access.
const ExpirySweepInterval = 5 * time.Minute

// Session expiry bounds in minutes
const (
	MinSessionExpiryMinutes      = 5
	MaxSessionExpiryMinutes      = 480
	MaxCalendarSessionExpiryMins = 1440
)
