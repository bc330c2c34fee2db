// Package logx is a thin wrapper over the standard library's log package
// that prepends a category prefix, generalizing the teacher repo's ad hoc
// log.Printf("...") call sites (blackhole.go never gates its logging
// behind any framework) into one small helper every component shares so
// grepping by category (`[chain]`, `[feed]`, `[policy]`, `[trade]`,
// `[control]`) is consistent across the agent.
package logx

import "log"

// Logger prints every message with a fixed "[category]" prefix.
type Logger struct {
	category string
}

// New returns a Logger that tags every line with category, e.g. "chain",
// "feed", "policy", "trade", "control".
func New(category string) *Logger {
	return &Logger{category: category}
}

func (l *Logger) Printf(format string, args ...interface{}) {
	log.Printf("[%s] "+format, append([]interface{}{l.category}, args...)...)
}

func (l *Logger) Println(args ...interface{}) {
	log.Println(append([]interface{}{"[" + l.category + "]"}, args...)...)
}
