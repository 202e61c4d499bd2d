package diminuto

import (
	"time"

	catrate "github.com/joeycumines/go-catrate"
)

// dedup rate-limits recurring, expected-but-noisy log lines (a repeated
// scheduling-class downgrade, a repeatedly failing signal delivery) to at
// most a few lines per window instead of one per occurrence. Categories
// are small fixed strings ("timer.schedclass", "timer.signal"); see the
// call sites in timer.
var dedup = catrate.NewLimiter(map[time.Duration]int{
	time.Second: 1,
	time.Minute: 10,
})

// LogOnce logs entry through the package-wide Logger, but only if the
// (Component, category) pair hasn't already logged within its current
// rate-limit window. Conditions should still be logged at their point of
// origin, but individually benign ones that recur often under normal
// operation (a flapping timeout, a repeated downgrade) go through LogOnce
// instead of Log, so a flapping condition doesn't flood the log.
func LogOnce(category string, entry LogEntry) {
	if _, ok := dedup.Allow(entry.Component + "/" + category); ok {
		GetLogger().Log(entry)
	}
}
