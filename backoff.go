package arcp

import (
	"runtime"

	"github.com/klauspost/cpuid/v2"
)

// maxBusyRounds bounds how many rounds of runtime.Gosched a backoff spends
// before settling into steady-state yielding. Hosts with a high core count
// (cpuid-reported) see more transient pending-count contention per cell, so
// they get a longer busy phase before the cost of repeated Gosched calls
// dominates.
var maxBusyRounds = func() int {
	if n := cpuid.CPU.LogicalCores; n > 4 {
		return 8
	}
	return 2
}()

// backoff implements the spin strategy spec.md §3.3 and §5 require for the
// pending-count overflow path: "spins (yielding the CPU) until another
// operation drains it". It carries round-to-round state so repeated
// contention on the same cell backs off instead of spinning at a fixed rate
// forever.
type backoff struct {
	rounds int
}

func (b *backoff) wait() {
	n := b.rounds + 1
	if n > maxBusyRounds {
		n = maxBusyRounds
	}
	for i := 0; i < n; i++ {
		runtime.Gosched()
	}
	b.rounds++
}
