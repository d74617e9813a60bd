package runner

import (
	"fmt"
	"time"

	"github.com/velden/playerok-bridge/internal/playerok"
)

// NewMessageEvent is the unit handed to consumers: one per message newly
// observed as unread, never mutated after construction.
type NewMessageEvent struct {
	ChatID  string
	Message playerok.Message
}

// RunnerError wraps the error that terminated a strict-mode run.
type RunnerError struct {
	Err error
}

func (e *RunnerError) Error() string {
	return fmt.Sprintf("runner stopped: %v", e.Err)
}

func (e *RunnerError) Unwrap() error { return e.Err }

// Stats is a snapshot of the runner's counters, served by the status
// endpoint. Nothing here persists across restarts.
type Stats struct {
	Cycles        int64     `json:"cycles"`
	FailedCycles  int64     `json:"failed_cycles"`
	ChatsDrained  int64     `json:"chats_drained"`
	EventsEmitted int64     `json:"events_emitted"`
	LastCycleAt   time.Time `json:"last_cycle_at"`
	LastError     string    `json:"last_error,omitempty"`
	LastErrorAt   time.Time `json:"last_error_at,omitempty"`
}
