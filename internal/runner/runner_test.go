package runner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velden/playerok-bridge/internal/playerok"
)

// fakeAccount is a scripted Account: discovery results per cycle, fixed chat
// snapshots and message pages, recorded mark-read calls.
type fakeAccount struct {
	mu sync.Mutex

	lists     [][]string // discovery result per cycle; last entry repeats
	listCalls int

	chats     map[string]playerok.Chat
	chatErr   map[string]error
	messages  map[string][]playerok.Message // chronological, as ChatMessages returns
	msgErr    map[string]error
	msgLimits []int

	markCalls   [][]string
	markErrOnce error
}

func (f *fakeAccount) ListUnreadChats(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.lists) == 0 {
		return nil, nil
	}
	i := f.listCalls
	if i >= len(f.lists) {
		i = len(f.lists) - 1
	}
	f.listCalls++
	return f.lists[i], nil
}

func (f *fakeAccount) GetChat(ctx context.Context, chatID string) (playerok.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.chatErr[chatID]; err != nil {
		return playerok.Chat{}, err
	}
	return f.chats[chatID], nil
}

func (f *fakeAccount) ChatMessages(ctx context.Context, chatID string, limit int) ([]playerok.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgLimits = append(f.msgLimits, limit)
	if err := f.msgErr[chatID]; err != nil {
		return nil, err
	}
	msgs := f.messages[chatID]
	if limit < len(msgs) {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

func (f *fakeAccount) MarkChatsRead(ctx context.Context, chatIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markCalls = append(f.markCalls, append([]string(nil), chatIDs...))
	if f.markErrOnce != nil {
		err := f.markErrOnce
		f.markErrOnce = nil
		return err
	}
	return nil
}

func (f *fakeAccount) markedBatches() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string(nil), f.markCalls...)
}

func msg(id, text, createdAt string) playerok.Message {
	return playerok.Message{
		ID:        id,
		Text:      text,
		CreatedAt: createdAt,
		Type:      playerok.Classify(text, false),
	}
}

// startRunner runs r in the background and returns a stop function that
// cancels the loop and waits for Run to return its error.
func startRunner(t *testing.T, r *Runner) (stop func() error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- r.Run(ctx)
	}()
	return func() error {
		cancel()
		select {
		case err := <-errCh:
			return err
		case <-time.After(2 * time.Second):
			t.Fatal("runner did not stop after cancel")
			return nil
		}
	}
}

func collectEvents(t *testing.T, r *Runner, n int) []NewMessageEvent {
	t.Helper()
	var events []NewMessageEvent
	deadline := time.After(2 * time.Second)
	for len(events) < n {
		select {
		case ev, ok := <-r.Events():
			if !ok {
				t.Fatalf("events channel closed after %d of %d events", len(events), n)
			}
			events = append(events, ev)
		case <-deadline:
			t.Fatalf("timed out after %d of %d events", len(events), n)
		}
	}
	return events
}

func TestRunner_EndToEnd(t *testing.T) {
	// one unread chat with counter=2; the facade contract delivers the
	// page chronologically, so events must come out a then b, followed by
	// exactly one mark-read of the whole discovered batch
	fake := &fakeAccount{
		lists: [][]string{{"chat-1"}, nil},
		chats: map[string]playerok.Chat{
			"chat-1": {ID: "chat-1", UnreadMessagesCounter: 2},
		},
		messages: map[string][]playerok.Message{
			"chat-1": {msg("a", "yo", "t1"), msg("b", "hi", "t2")},
		},
	}
	r := New(fake, Options{Interval: 10 * time.Millisecond})
	stop := startRunner(t, r)

	events := collectEvents(t, r, 2)
	assert.ErrorIs(t, stop(), context.Canceled)

	assert.Equal(t, "a", events[0].Message.ID)
	assert.Equal(t, "b", events[1].Message.ID)
	assert.Equal(t, "chat-1", events[0].ChatID)
	assert.Equal(t, "chat-1", events[1].ChatID)

	marks := fake.markedBatches()
	require.Len(t, marks, 1)
	assert.Equal(t, []string{"chat-1"}, marks[0])
}

func TestRunner_ZeroUnreadChatSkipped(t *testing.T) {
	// counter already cleared by a concurrent read elsewhere: no events,
	// but the chat stays in the mark-read batch because the batch is the
	// discovery result
	fake := &fakeAccount{
		lists: [][]string{{"chat-a"}, nil},
		chats: map[string]playerok.Chat{
			"chat-a": {ID: "chat-a", UnreadMessagesCounter: 0},
		},
	}
	r := New(fake, Options{Interval: 10 * time.Millisecond})
	stop := startRunner(t, r)

	assert.Eventually(t, func() bool {
		return len(fake.markedBatches()) >= 1
	}, 2*time.Second, 5*time.Millisecond, "mark-read should still run for the discovered batch")

	stop()

	marks := fake.markedBatches()
	require.NotEmpty(t, marks)
	assert.Equal(t, []string{"chat-a"}, marks[0])
	assert.Equal(t, int64(0), r.Stats().EventsEmitted)
}

func TestRunner_EmptyDiscoverSkipsMarkRead(t *testing.T) {
	fake := &fakeAccount{lists: [][]string{nil}}
	r := New(fake, Options{Interval: 5 * time.Millisecond})
	stop := startRunner(t, r)

	assert.Eventually(t, func() bool {
		return r.Stats().Cycles >= 3
	}, 2*time.Second, 5*time.Millisecond)

	stop()
	assert.Empty(t, fake.markedBatches())
}

func TestRunner_CycleIsolation(t *testing.T) {
	// a failure draining chat 2 of 3 must not undo chat 1's delivery and
	// must not reach mark-read at all for that cycle
	fake := &fakeAccount{
		lists: [][]string{{"c1", "c2", "c3"}, nil},
		chats: map[string]playerok.Chat{
			"c1": {ID: "c1", UnreadMessagesCounter: 1},
			"c2": {ID: "c2", UnreadMessagesCounter: 1},
			"c3": {ID: "c3", UnreadMessagesCounter: 1},
		},
		messages: map[string][]playerok.Message{
			"c1": {msg("m1", "one", "t1")},
			"c3": {msg("m3", "three", "t3")},
		},
		msgErr: map[string]error{"c2": errors.New("boom")},
	}
	r := New(fake, Options{Interval: 10 * time.Millisecond})
	stop := startRunner(t, r)

	events := collectEvents(t, r, 1)
	assert.Equal(t, "m1", events[0].Message.ID)

	assert.Eventually(t, func() bool {
		return r.Stats().FailedCycles >= 1
	}, 2*time.Second, 5*time.Millisecond)

	stop()
	assert.Empty(t, fake.markedBatches(), "a failed cycle must not mark anything read")
}

func TestRunner_AtLeastOnceRedelivery(t *testing.T) {
	// crash between emission and mark-read: the first mark fails, the chat
	// stays unread server-side, and the next cycle re-emits the same
	// message id
	fake := &fakeAccount{
		lists: [][]string{{"chat-1"}, {"chat-1"}, nil},
		chats: map[string]playerok.Chat{
			"chat-1": {ID: "chat-1", UnreadMessagesCounter: 1},
		},
		messages: map[string][]playerok.Message{
			"chat-1": {msg("dup", "hello", "t1")},
		},
		markErrOnce: errors.New("connection reset"),
	}
	r := New(fake, Options{Interval: 10 * time.Millisecond})
	stop := startRunner(t, r)

	events := collectEvents(t, r, 2)
	stop()

	assert.Equal(t, "dup", events[0].Message.ID)
	assert.Equal(t, "dup", events[1].Message.ID, "consumers dedupe by message id")
}

func TestRunner_DrainsFullUnreadCounter(t *testing.T) {
	// the fetch limit must equal the unread counter exactly: fetching
	// fewer would leave the oldest unread messages marked read without
	// ever emitting them
	fake := &fakeAccount{
		lists: [][]string{{"chat-1"}, nil},
		chats: map[string]playerok.Chat{
			"chat-1": {ID: "chat-1", UnreadMessagesCounter: 5},
		},
		messages: map[string][]playerok.Message{
			"chat-1": {
				msg("m1", "a", "t1"), msg("m2", "b", "t2"), msg("m3", "c", "t3"),
				msg("m4", "d", "t4"), msg("m5", "e", "t5"),
			},
		},
	}
	r := New(fake, Options{Interval: 10 * time.Millisecond})
	stop := startRunner(t, r)

	events := collectEvents(t, r, 5)
	stop()

	for i, want := range []string{"m1", "m2", "m3", "m4", "m5"} {
		assert.Equal(t, want, events[i].Message.ID)
	}

	fake.mu.Lock()
	limits := append([]int(nil), fake.msgLimits...)
	fake.mu.Unlock()

	require.NotEmpty(t, limits)
	assert.Equal(t, 5, limits[0], "drain limit must match the unread counter")

	marks := fake.markedBatches()
	require.Len(t, marks, 1)
	assert.Equal(t, []string{"chat-1"}, marks[0])
}

func TestRunner_StrictModeTerminates(t *testing.T) {
	fake := &fakeAccount{
		lists: [][]string{{"c1"}},
		chatErr: map[string]error{
			"c1": errors.New("api down"),
		},
	}
	r := New(fake, Options{Interval: 10 * time.Millisecond, Strict: true})

	errCh := make(chan error, 1)
	go func() {
		errCh <- r.Run(context.Background())
	}()

	// drain until close; strict mode ends the stream on first error
	for range r.Events() {
	}

	select {
	case err := <-errCh:
		var rerr *RunnerError
		require.ErrorAs(t, err, &rerr)
		assert.Contains(t, rerr.Error(), "api down")
	case <-time.After(2 * time.Second):
		t.Fatal("strict runner did not terminate")
	}
}

func TestRunner_ContinueModeSurvivesErrors(t *testing.T) {
	fake := &fakeAccount{
		lists: [][]string{{"c1"}, {"c1"}, nil},
		chatErr: map[string]error{
			"c1": errors.New("transient"),
		},
	}
	r := New(fake, Options{Interval: 5 * time.Millisecond})
	stop := startRunner(t, r)

	assert.Eventually(t, func() bool {
		return r.Stats().FailedCycles >= 2
	}, 2*time.Second, 5*time.Millisecond, "loop keeps polling through failures")

	err := stop()
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunner_CancelClosesEvents(t *testing.T) {
	fake := &fakeAccount{lists: [][]string{nil}}
	r := New(fake, Options{Interval: time.Hour}) // parked in SLEEP

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- r.Run(ctx)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case _, ok := <-r.Events():
		assert.False(t, ok, "events channel should be closed")
	case <-time.After(2 * time.Second):
		t.Fatal("events channel not closed after cancel")
	}
	assert.ErrorIs(t, <-errCh, context.Canceled)
}
