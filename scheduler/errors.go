package scheduler

import (
	"fmt"
	"strings"
)

// ConfigurationError reports an invalid scheduler setup detected before any
// agent work starts.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("scheduler configuration error: %s", e.Reason)
}

// TimeoutError reports that a run exhausted its round budget before every
// agent reached a terminal state. Remaining lists the task nodes that never
// completed; Cycle is non-nil when the incompleteness is explained by a
// dependency cycle in the task graph.
type TimeoutError struct {
	Rounds    int
	Remaining []string
	Cycle     []string
}

func (e *TimeoutError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "run did not settle within %d rounds", e.Rounds)
	if len(e.Remaining) > 0 {
		fmt.Fprintf(&b, "; incomplete nodes: %s", strings.Join(e.Remaining, ", "))
	}
	if len(e.Cycle) > 0 {
		fmt.Fprintf(&b, "; dependency cycle: %s", strings.Join(e.Cycle, " -> "))
	}
	return b.String()
}
