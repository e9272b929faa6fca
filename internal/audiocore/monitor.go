package audiocore

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/tphakala/voicecap/internal/logger"
)

// monitor publishes producer counters and ring occupancy, and warns about
// overflow from outside the real-time thread.
func (p *Pipeline) monitor(s *session) {
	ticker := time.NewTicker(p.monitorInterval)
	defer ticker.Stop()

	warn := rate.NewLimiter(rate.Every(logInterval), 1)

	var lastCaptured, lastOverflowSamples, lastOverflowEvents uint64
	overflowStreak := 0
	snapshotLogged := false

	for {
		select {
		case <-s.quit:
			return
		case <-ticker.C:
		}

		captured := p.counters.captured.Load()
		overflowSamples := p.counters.overflowSamples.Load()
		overflowEvents := p.counters.overflowEvents.Load()

		deltaEvents := overflowEvents - lastOverflowEvents
		deltaSamples := overflowSamples - lastOverflowSamples
		p.metrics.RecordCounters(captured-lastCaptured, deltaSamples, deltaEvents)
		lastCaptured, lastOverflowSamples, lastOverflowEvents = captured, overflowSamples, overflowEvents

		buffered := p.ring.AvailableData()
		p.metrics.RecordRingFill(buffered, p.ring.Capacity())
		s.log.Trace("ring occupancy",
			logger.Int("buffered", buffered),
			logger.Uint64("captured_samples", captured))

		if deltaEvents == 0 {
			overflowStreak = 0
			continue
		}

		overflowStreak++
		if warn.Allow() {
			s.log.Warn("ring buffer overflow, samples dropped",
				logger.Uint64("dropped_samples", deltaSamples),
				logger.Uint64("overflow_events", deltaEvents),
				logger.Int("buffered", buffered),
				logger.Int("capacity", p.ring.Capacity()))
		}

		if p.overflowDiagnostics > 0 && overflowStreak >= p.overflowDiagnostics && !snapshotLogged {
			snapshotLogged = true
			fields := append([]logger.Field{logger.Int("consecutive_intervals", overflowStreak)}, captureSystemInfo()...)
			s.log.Warn("sustained overflow, consumer is not keeping up", fields...)
		}
	}
}
