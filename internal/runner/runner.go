// Package runner implements the polling event core: it repeatedly discovers
// chats with unread messages, drains them in order, emits one event per new
// message and marks the batch read.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/velden/playerok-bridge/internal/logger"
	"github.com/velden/playerok-bridge/internal/playerok"
)

// Account is the facade surface the runner drives. Satisfied by
// *playerok.Account; tests substitute fakes.
type Account interface {
	ListUnreadChats(ctx context.Context) ([]string, error)
	GetChat(ctx context.Context, chatID string) (playerok.Chat, error)
	ChatMessages(ctx context.Context, chatID string, limit int) ([]playerok.Message, error)
	MarkChatsRead(ctx context.Context, chatIDs []string) error
}

// Options configures a Runner.
type Options struct {
	// Interval is the fixed sleep between cycles. Default 4s. This is the
	// sole backpressure mechanism besides the blocking event handoff.
	Interval time.Duration

	// Strict makes the first cycle error terminate Run with a *RunnerError.
	// In the default continue mode a failed cycle is logged and abandoned;
	// the next DISCOVER naturally re-surfaces whatever was left unread.
	Strict bool

	Logger *logger.Logger
}

// Runner is a single sequential poll loop. One logical worker: no fan-out
// across chats or messages, unread volume per account is small.
type Runner struct {
	account  Account
	interval time.Duration
	strict   bool
	log      *logger.Logger
	events   chan NewMessageEvent

	mu    sync.Mutex
	stats Stats
}

// New creates a runner. The events channel is unbuffered: emission is a
// synchronous handoff, so a blocked consumer blocks the loop.
func New(account Account, opts Options) *Runner {
	if opts.Interval <= 0 {
		opts.Interval = 4 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logger.Get()
	}
	return &Runner{
		account:  account,
		interval: opts.Interval,
		strict:   opts.Strict,
		log:      opts.Logger,
		events:   make(chan NewMessageEvent),
	}
}

// Events returns the stream of emitted events. Closed when Run returns.
// Consumers must treat duplicate message ids as possible: a crash between
// emission and mark-read redelivers on the next cycle.
func (r *Runner) Events() <-chan NewMessageEvent {
	return r.events
}

// Run drives the DISCOVER → DRAIN → MARK-READ → SLEEP loop until the context
// is cancelled or, in strict mode, a cycle fails. Closes the events channel
// on return.
func (r *Runner) Run(ctx context.Context) error {
	defer close(r.events)

	for {
		err := r.cycle(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return ctx.Err()
			}
			r.recordError(err)
			if r.strict {
				return &RunnerError{Err: err}
			}
			r.log.Error().Err(err).Msg("poll cycle failed")
		}

		// SLEEP boundary: cancellation is always honored here
		select {
		case <-time.After(r.interval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// cycle runs one DISCOVER → DRAIN → MARK-READ pass. Any error abandons the
// cycle before MARK-READ, so no partial read-marking ever happens: either the
// whole discovered batch is marked, or none of it.
func (r *Runner) cycle(ctx context.Context) error {
	unread, err := r.account.ListUnreadChats(ctx)
	if err != nil {
		return fmt.Errorf("list unread chats: %w", err)
	}
	if len(unread) == 0 {
		r.recordCycle(0, 0)
		return nil
	}

	r.log.Info().Strs("chats", unread).Msg("unread chats discovered")

	var drained, emitted int
	for _, chatID := range unread {
		chat, err := r.account.GetChat(ctx, chatID)
		if err != nil {
			return fmt.Errorf("get chat %s: %w", chatID, err)
		}

		// the counter can already be cleared by a concurrent read
		// elsewhere; skip the drain but keep the chat in the mark-read
		// batch, the batch is the DISCOVER result
		if chat.UnreadMessagesCounter == 0 {
			continue
		}

		// fetch exactly the unread counter: anything less would mark
		// messages read below that were never emitted
		messages, err := r.account.ChatMessages(ctx, chatID, chat.UnreadMessagesCounter)
		if err != nil {
			return fmt.Errorf("fetch messages of chat %s: %w", chatID, err)
		}

		// chronological handoff: every message of this chat is delivered
		// before the next chat is touched
		for _, msg := range messages {
			select {
			case r.events <- NewMessageEvent{ChatID: chatID, Message: msg}:
				emitted++
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		drained++
	}

	// mark once per cycle, after all emission: a crash before this point
	// redelivers already-emitted messages next cycle (at-least-once)
	if err := r.account.MarkChatsRead(ctx, unread); err != nil {
		return fmt.Errorf("mark chats read: %w", err)
	}

	r.recordCycle(drained, emitted)
	return nil
}

// Stats returns a snapshot of the runner's counters.
func (r *Runner) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

func (r *Runner) recordCycle(drained, emitted int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.Cycles++
	r.stats.ChatsDrained += int64(drained)
	r.stats.EventsEmitted += int64(emitted)
	r.stats.LastCycleAt = time.Now()
}

func (r *Runner) recordError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.Cycles++
	r.stats.FailedCycles++
	r.stats.LastError = err.Error()
	r.stats.LastErrorAt = time.Now()
	r.stats.LastCycleAt = time.Now()
}
