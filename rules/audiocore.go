//go:build ruleguard

// Package gorules defines custom linter rules for voicecap.
package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// AudioCoreErrors flags fmt.Errorf in the audio packages.
//
// Errors raised under internal/audiocore carry a component, a category and
// context so they group in logs and error reports:
//
//	errors.New(err).
//	    Component(ComponentAudioCore).
//	    Category(errors.CategoryBuffer).
//	    Context("operation", "consume").
//	    Build()
func AudioCoreErrors(m dsl.Matcher) {
	m.Match(`fmt.Errorf($*_)`).
		Where(m.File().PkgPath.Matches(`/internal/audiocore`) && !m.File().Name.Matches(`_test\.go$`)).
		Report("use the internal/errors builder with a component and category instead of fmt.Errorf")
}

// AudioCoreSleep flags time.Sleep in the pipeline packages.
//
// The consumer waits on the ring's notify channel and the monitor on a
// ticker; both must also wake on the session quit channel, which a sleep
// cannot do.
func AudioCoreSleep(m dsl.Matcher) {
	m.Match(`time.Sleep($_)`).
		Where(m.File().PkgPath.Matches(`/internal/audiocore`) && !m.File().Name.Matches(`_test\.go$`)).
		Report("select on a channel together with the quit channel instead of sleeping")
}

// SinkCloseUnchecked flags sinks closed in a bare defer.
//
// Close flushes buffered audio and finalises WAV headers, so its error is
// the only signal that the tail of a recording was lost.
func SinkCloseUnchecked(m dsl.Matcher) {
	m.Import("github.com/tphakala/voicecap/internal/audiocore")

	m.Match(`defer $s.Close()`).
		Where(m["s"].Type.Implements("audiocore.Sink")).
		Report("check the error from $s.Close(); it flushes buffered audio")
}
