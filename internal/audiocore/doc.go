// Package audiocore implements the real-time capture pipeline.
//
// Audio flows from a hardware capture callback into a bounded
// single-producer/single-consumer ring buffer and is drained by one background
// consumer in fixed frames of FrameSize samples:
//
//	device callback -> FrameRing -> consumer -> raw sink
//	                                         -> Enhancer -> processed sink
//
// # Concurrency
//
// Exactly two execution contexts touch a running pipeline. The capture
// callback runs on a thread owned by the audio backend; it only copies into
// the ring, bumps atomic counters and performs a non-blocking wake. It never
// logs, allocates or performs I/O. The consumer goroutine owns the sinks and
// the enhancer and is the only place where I/O happens.
//
// When the ring is full the newest samples are dropped and counted. A
// health monitor goroutine turns those counters into log lines and metrics.
//
// Stopping discards whatever is still buffered. Samples that were captured
// but not yet drained reach neither sink.
//
// # Sample format
//
// Samples are signed 16-bit little-endian mono. Conversion to float uses a
// single full-scale constant of 32768 in both directions, so every int16
// value survives an int16 -> float32 -> int16 round trip unchanged.
package audiocore
