// Package metrics provides constants used across metric definitions.
package metrics

import "time"

// Sink label values
const (
	SinkRaw       = "raw"
	SinkProcessed = "processed"
)

// Status label values
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusSkipped = "skipped"
)

// ShutdownTimeout bounds how long the metrics endpoint waits for in-flight scrapes.
const ShutdownTimeout = 5 * time.Second
