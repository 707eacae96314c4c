package constants

import "time"

const (
	ExternalAPITimeout = 10 * time.Second
	DatabaseTimeout    = 5 * time.Second
	RequestTimeout     = 60 * time.Second
)

const (
	// Estimated API point cost of one tier's combined ranking query.
	PointsPerTier = 20.0
	// Estimated API point cost of one report/party lookup inside the batch.
	PointsPerReport = 5.0
	// Fallback reset ETA when no rate-limit snapshot has been observed yet.
	ResetETAFallback = time.Hour
	// Minimum spacing between GraphQL calls, to stay clear of burst limits.
	QueryInterval = 250 * time.Millisecond
)

const (
	TokenURL = "https://www.fflogs.com/oauth/token"
	APIURL   = "https://www.fflogs.com/api/v2/client"
	// New tokens are requested once fewer than this remains on the cached one.
	TokenRefreshThreshold = time.Hour
)

const (
	DBMaxOpenConns    = 10
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	SearchHistoryLimit = 20
)
