//go:build ruleguard

package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// WaitGroupGo detects the manual Add/Done pattern around a closure and
// suggests wg.Go (Go 1.25+).
func WaitGroupGo(m dsl.Matcher) {
	m.Match(
		`$wg.Add(1); go func() { defer $wg.Done(); $*body }()`,
	).
		Where(m["wg"].Type.Is("*sync.WaitGroup") || m["wg"].Type.Is("sync.WaitGroup")).
		Report("use $wg.Go(func() { $body }) instead of manual Add/Done pattern (Go 1.25+)").
		Suggest("$wg.Go(func() { $body })")
}

// TestingContext flags context.Background() in tests. t.Context() is
// cancelled when the test ends, which stops pipelines and endpoints that
// a failing test would otherwise leak.
func TestingContext(m dsl.Matcher) {
	m.Match(`$ctx := context.Background()`).
		Where(m.File().Name.Matches(`_test\.go$`)).
		Report("in tests, use t.Context() instead of context.Background()")
}
