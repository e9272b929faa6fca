package observability

import "github.com/tphakala/voicecap/internal/logger"

// Package-level logger for the metrics endpoint
var log = logger.Global().Module("telemetry")
