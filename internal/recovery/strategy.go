package recovery

import (
	"time"

	"golang.org/x/exp/slices"
)

// ScheduledBatch is one group of entity ids to be redelivered as a
// RestartEntities command after Delay has elapsed since recovery
// completed.
type ScheduledBatch struct {
	Ids   []string
	Delay time.Duration
}

// Strategy plans how remembered entities are reintroduced after
// recovery. Implementations must be pure: Plan has no side effects and
// does not itself wait or schedule anything.
type Strategy interface {
	Plan(ids []string) []ScheduledBatch
}

// sortedCopy returns a deterministically ordered copy of ids, so that
// batch membership does not depend on Go's randomized map iteration
// order upstream.
func sortedCopy(ids []string) []string {
	out := make([]string, len(ids))
	copy(out, ids)
	slices.Sort(out)
	return out
}

// AllAtOnce restarts every remembered entity in a single batch
// delivered immediately after recovery completes. An empty id set
// yields no batches at all.
type AllAtOnce struct{}

// NewAllAtOnce returns the all-at-once recovery strategy.
func NewAllAtOnce() *AllAtOnce {
	return &AllAtOnce{}
}

// Plan implements Strategy.
func (AllAtOnce) Plan(ids []string) []ScheduledBatch {
	if len(ids) == 0 {
		return nil
	}
	return []ScheduledBatch{{Ids: sortedCopy(ids), Delay: 0}}
}

// ConstantRate partitions ids into fixed-size groups and schedules
// group k (0-indexed) to resolve at (k+1)*Frequency after recovery
// completes. The final group may be smaller than NumberOfEntities.
type ConstantRate struct {
	Frequency        time.Duration
	NumberOfEntities int
}

// NewConstantRate returns a constant-rate recovery strategy pacing
// groups of size numberOfEntities at the given frequency. Both
// parameters must be positive; a non-positive numberOfEntities is
// coerced to 1 and a non-positive frequency to 0 to keep Plan total
// rather than panicking on misconfiguration.
func NewConstantRate(frequency time.Duration, numberOfEntities int) *ConstantRate {
	if numberOfEntities <= 0 {
		numberOfEntities = 1
	}
	if frequency < 0 {
		frequency = 0
	}
	return &ConstantRate{Frequency: frequency, NumberOfEntities: numberOfEntities}
}

// Plan implements Strategy.
func (c *ConstantRate) Plan(ids []string) []ScheduledBatch {
	if len(ids) == 0 {
		return nil
	}
	sorted := sortedCopy(ids)
	n := c.NumberOfEntities
	if n <= 0 {
		n = 1
	}

	batches := make([]ScheduledBatch, 0, (len(sorted)+n-1)/n)
	for k := 0; k*n < len(sorted); k++ {
		start := k * n
		end := start + n
		if end > len(sorted) {
			end = len(sorted)
		}
		group := make([]string, end-start)
		copy(group, sorted[start:end])
		batches = append(batches, ScheduledBatch{
			Ids:   group,
			Delay: time.Duration(k+1) * c.Frequency,
		})
	}
	return batches
}
