package constants

import "time"

const (
	// ReconcileToleranceMillis is the timestamp slack allowed when
	// matching a newly observed fight or streak against an already
	// persisted one. Two reports of the same pull rarely agree on
	// timestamps to the millisecond.
	ReconcileToleranceMillis = int64(10_000)
)

const (
	ExternalAPITimeout = 10 * time.Second
	DatabaseTimeout    = 5 * time.Second
	IngestTimeout      = 5 * time.Minute
	TokenRefreshSkew   = 1 * time.Minute
)

const (
	DBMaxOpenConns    = 100
	DBMaxIdleConns    = 10
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
)

const (
	// RosterChunkSize caps how many fight ids go into a single roster
	// detail query.
	RosterChunkSize = 25
)

const (
	ShutdownTimeout = 5 * time.Second
)
