package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "breez"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPort = "8080"

	DefaultRateLimitRequests = 30
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	// Clinic working hours: bookings accepted in [WorkStartHour, WorkEndHour).
	DefaultWorkStartHour = 8
	DefaultWorkEndHour   = 16

	DefaultAppointmentDurationMin = 60

	// Slot serialization lock. A booking that cannot take the lock within
	// SlotLockWait is reported as retryable rather than queued indefinitely.
	DefaultSlotLockTTL           = 10 * time.Second
	DefaultSlotLockWait          = 2 * time.Second
	DefaultSlotLockRetryInterval = 100 * time.Millisecond

	DefaultEventsTopic = "appointments.events"

	DefaultPaginationLimit = 100
)
