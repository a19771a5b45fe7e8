package chat

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/madrasa/core"
)

const (
	waitFor = time.Second
	tick    = 5 * time.Millisecond
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) record(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventKind, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Kind)
	}
	return out
}

func (r *recorder) notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Notice
	for _, ev := range r.events {
		if ev.Notice != nil {
			out = append(out, *ev.Notice)
		}
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

type spyLogger struct {
	core.NopLogger
	mu    sync.Mutex
	debug []string
	warn  []string
}

func (l *spyLogger) Debug(msg string, _ ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.debug = append(l.debug, msg)
}

func (l *spyLogger) Warn(msg string, _ ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warn = append(l.warn, msg)
}

func (l *spyLogger) debugged(prefix string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, msg := range l.debug {
		if strings.HasPrefix(msg, prefix) {
			return true
		}
	}
	return false
}

type sessionFixture struct {
	session *Session
	store   *fakeStore
	events  *recorder
	logger  *spyLogger
}

// newFixture returns a session for "me" whose list holds a (older) and b (newer).
func newFixture(t *testing.T) *sessionFixture {
	t.Helper()
	f := &sessionFixture{store: newFakeStore(), events: new(recorder), logger: new(spyLogger)}
	f.store.convs = []Conversation{
		conv("a", "Amina Yusuf", core.RoleStudent, day0, 0),
		conv("b", "Bilal Musa", core.RoleParent, day0.Add(time.Hour), 0),
	}
	f.store.history["a"] = []ChatMessage{
		msgAt("a1", "a", "Salaam", day0.Add(-time.Hour), true),
		msgAt("a2", "me", "Wa alaikum salaam", day0, true),
	}
	f.store.history["b"] = []ChatMessage{
		msgAt("b1", "b", "Is the trip on Friday?", day0.Add(time.Hour), true),
	}

	f.session = NewSession(Options{
		UserID:   "me",
		Store:    f.store,
		Logger:   f.logger,
		Location: time.UTC,
		Now:      newClock(day0.Add(24 * time.Hour)).Now,
		NewID:    new(seqIDs).Next,
	})
	require.NoError(t, f.session.LoadConversations(context.Background()))
	f.session.Subscribe(f.events.record)
	return f
}

func (f *sessionFixture) open(t *testing.T, id string) {
	t.Helper()
	require.NoError(t, f.session.SelectConversation(context.Background(), id))
	f.session.Wait()
	require.Equal(t, StateReady, f.session.ThreadState())
	f.events.reset()
}

func TestSession_LoadConversations(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, []string{"b", "a"}, ids(f.session.Conversations(ConversationFilter{})))
	assert.Equal(t, []string{"b"}, ids(f.session.Conversations(ConversationFilter{SearchText: "MUSA"})))

	f.store.mu.Lock()
	f.store.convsErr = errNetwork
	f.store.mu.Unlock()
	err := f.session.LoadConversations(context.Background())
	require.Error(t, err)
	assert.True(t, IsTransport(err))
	require.Len(t, f.events.notices(), 1)
	assert.Equal(t, NoticeLoadFailed, f.events.notices()[0].Kind)
	assert.Len(t, f.session.Conversations(ConversationFilter{}), 2, "list survives a failed reload")
}

func TestSession_SelectConversation(t *testing.T) {
	f := newFixture(t)

	err := f.session.SelectConversation(context.Background(), "nobody")
	assert.Equal(t, ErrConversationNotFound, errors.Cause(err))
	assert.Equal(t, StateIdle, f.session.ThreadState())

	require.NoError(t, f.session.SelectConversation(context.Background(), "a"))
	f.session.Wait()
	assert.Equal(t, StateReady, f.session.ThreadState())
	assert.Equal(t, "a", f.session.SelectedID())
	assert.Equal(t, []string{"a1", "a2"}, messageIDs(f.session.Messages()))
	assert.Equal(t, []EventKind{EventThreadChanged, EventThreadChanged}, f.events.kinds())
	assert.Empty(t, f.store.markedReadPeers(), "nothing was unread")

	groups := f.session.Groups()
	require.Len(t, groups, 1)
	assert.Equal(t, "Monday, January 1", groups[0].Label)
}

// P5
func TestSession_SendMessage_optimistic(t *testing.T) {
	f := newFixture(t)
	f.open(t, "a")
	gate := make(chan struct{})
	f.store.mu.Lock()
	f.store.sendGate = gate
	f.store.mu.Unlock()

	before := len(f.session.Messages())
	msg, ok := f.session.SendMessage(context.Background(), "hello")
	require.True(t, ok)

	msgs := f.session.Messages()
	require.Len(t, msgs, before+1)
	last := msgs[len(msgs)-1]
	assert.Equal(t, msg, last)
	assert.True(t, strings.HasPrefix(last.ID, TempIDPrefix))
	assert.Equal(t, "me", last.SenderID)
	assert.True(t, last.Pending)
	assert.Empty(t, f.store.sentMessages(), "delivery is still in flight")

	convs := f.session.Conversations(ConversationFilter{})
	assert.Equal(t, "a", convs[0].ID)
	assert.Equal(t, "hello", convs[0].LastMessagePreview)
	assert.Len(t, convs, 2)

	close(gate)
	f.session.Wait()
	assert.Equal(t, []sentMessage{{peerID: "a", content: "hello"}}, f.store.sentMessages())
	last = f.session.Messages()[before]
	assert.False(t, last.Pending)
	assert.Equal(t, msg.ID, last.ID, "temporary id is kept")
	assert.Equal(t, []EventKind{EventThreadChanged, EventConversationsChanged, EventThreadChanged}, f.events.kinds())
}

func TestSession_SendMessage_trims(t *testing.T) {
	f := newFixture(t)
	f.open(t, "b")

	msg, ok := f.session.SendMessage(context.Background(), "  see you Friday \n")
	require.True(t, ok)
	f.session.Wait()
	assert.Equal(t, "see you Friday", msg.Content)
	assert.Equal(t, []sentMessage{{peerID: "b", content: "see you Friday"}}, f.store.sentMessages())
}

func TestSession_SendMessage_serverClockAhead(t *testing.T) {
	store := newFakeStore()
	store.convs = []Conversation{
		conv("b", "Bilal Musa", core.RoleParent, day0.Add(time.Hour), 0),
		conv("a", "Amina Yusuf", core.RoleStudent, day0, 0),
	}
	session := NewSession(Options{
		UserID:   "me",
		Store:    store,
		Location: time.UTC,
		Now:      newClock(day0).Now, // first tick is day0+1m, behind b
		NewID:    new(seqIDs).Next,
	})
	ctx := context.Background()
	require.NoError(t, session.LoadConversations(ctx))
	require.NoError(t, session.SelectConversation(ctx, "a"))
	session.Wait()

	msg, ok := session.SendMessage(ctx, "hello")
	require.True(t, ok)
	session.Wait()

	convs := session.Conversations(ConversationFilter{})
	assert.Equal(t, []string{"a", "b"}, ids(convs))
	assert.Equal(t, "hello", convs[0].LastMessagePreview)
	assertSortedByActivity(t, convs)
	assert.Equal(t, day0.Add(time.Minute), msg.CreatedAt, "the message keeps the client time")

	started := session.StartThread(Contact{ID: "c", Name: "Chafik Sani", Role: core.RoleTeacher})
	convs = session.Conversations(ConversationFilter{})
	assert.Equal(t, []string{"c", "a", "b"}, ids(convs))
	assert.Equal(t, convs[0], started)
	assertSortedByActivity(t, convs)
}

func TestSession_LoadConversations_keepsLocalSends(t *testing.T) {
	f := newFixture(t)
	f.open(t, "a")
	gate := make(chan struct{})
	f.store.mu.Lock()
	f.store.sendGate = gate
	f.store.convs[0].LastMessagePreview = "old"
	f.store.mu.Unlock()
	ctx := context.Background()

	_, ok := f.session.SendMessage(ctx, "hello")
	require.True(t, ok)

	// the store has not seen the send yet
	require.NoError(t, f.session.LoadConversations(ctx))
	convs := f.session.Conversations(ConversationFilter{})
	assert.Equal(t, []string{"a", "b"}, ids(convs))
	assert.Equal(t, "hello", convs[0].LastMessagePreview)
	assertSortedByActivity(t, convs)

	close(gate)
	f.session.Wait()

	// once delivered, the next reload trusts the store again
	f.store.mu.Lock()
	f.store.convs[0].LastMessagePreview = "from the store"
	f.store.mu.Unlock()
	require.NoError(t, f.session.LoadConversations(ctx))
	convs = f.session.Conversations(ConversationFilter{})
	a, ok := f.session.Conversation("a")
	require.True(t, ok)
	assert.Equal(t, "from the store", a.LastMessagePreview)
	assertSortedByActivity(t, convs)
}

// P6
func TestSession_SendMessage_noop(t *testing.T) {
	f := newFixture(t)

	_, ok := f.session.SendMessage(context.Background(), "hello")
	assert.False(t, ok, "nothing selected")

	f.open(t, "a")
	before := f.session.Snapshot()
	for _, text := range []string{"", "   ", "\t\n"} {
		_, ok := f.session.SendMessage(context.Background(), text)
		assert.False(t, ok, "%q", text)
	}
	f.session.Wait()
	assert.Equal(t, before, f.session.Snapshot())
	assert.Empty(t, f.events.kinds())
	assert.Empty(t, f.store.sentMessages())

	gate := f.store.hold("b", 1)
	require.NoError(t, f.session.SelectConversation(context.Background(), "b"))
	_, ok = f.session.SendMessage(context.Background(), "too early")
	assert.False(t, ok, "thread still loading")
	close(gate)
	f.session.Wait()
}

func TestSession_SendMessage_deliveryFailure(t *testing.T) {
	f := newFixture(t)
	f.open(t, "a")
	f.store.mu.Lock()
	f.store.sendErr = errNetwork
	f.store.mu.Unlock()

	msg, ok := f.session.SendMessage(context.Background(), "are you there?")
	require.True(t, ok)
	f.session.Wait()

	msgs := f.session.Messages()
	last := msgs[len(msgs)-1]
	assert.Equal(t, msg.ID, last.ID, "failed message stays in the thread")
	assert.True(t, last.Pending)

	notices := f.events.notices()
	require.Len(t, notices, 1)
	assert.Equal(t, NoticeDeliveryFailed, notices[0].Kind)
	assert.Equal(t, "a", notices[0].ConversationID)
	assert.True(t, IsTransport(notices[0].Err))
	assert.NotEmpty(t, notices[0].Message())

	convs := f.session.Conversations(ConversationFilter{})
	assert.Equal(t, "are you there?", convs[0].LastMessagePreview)
}

// P7
func TestSession_staleHistoryDiscarded(t *testing.T) {
	f := newFixture(t)
	gate := f.store.hold("a", 1)

	require.NoError(t, f.session.SelectConversation(context.Background(), "a"))
	require.NoError(t, f.session.SelectConversation(context.Background(), "b"))
	assert.Eventually(t, func() bool {
		return f.session.ThreadState() == StateReady
	}, waitFor, tick)
	want := f.session.Messages()

	close(gate)
	f.session.Wait()
	assert.Equal(t, "b", f.session.SelectedID())
	assert.Equal(t, StateReady, f.session.ThreadState())
	assert.Equal(t, want, f.session.Messages())
	assert.True(t, f.logger.debugged("discarding stale history"))
}

func TestSession_staleFailureDiscarded(t *testing.T) {
	f := newFixture(t)
	f.store.historyErr["a"] = errNetwork
	gate := f.store.hold("a", 1)

	require.NoError(t, f.session.SelectConversation(context.Background(), "a"))
	require.NoError(t, f.session.SelectConversation(context.Background(), "b"))
	assert.Eventually(t, func() bool {
		return f.session.ThreadState() == StateReady
	}, waitFor, tick)

	close(gate)
	f.session.Wait()
	assert.Equal(t, StateReady, f.session.ThreadState())
	assert.Equal(t, "b", f.session.SelectedID())
	assert.Empty(t, f.events.notices())
}

func TestSession_reselectDiscardsFirstResponse(t *testing.T) {
	f := newFixture(t)
	f.store.respond = func(peerID string, call int) ([]ChatMessage, error) {
		if peerID == "a" && call == 1 {
			return []ChatMessage{msgAt("old", "a", "old copy", day0, true)}, nil
		}
		if peerID == "a" {
			return []ChatMessage{msgAt("new", "a", "fresh copy", day0, true)}, nil
		}
		return nil, nil
	}
	gate := f.store.hold("a", 1)

	require.NoError(t, f.session.SelectConversation(context.Background(), "a"))
	assert.Eventually(t, func() bool { return f.store.hits("a") == 1 }, waitFor, tick)
	require.NoError(t, f.session.SelectConversation(context.Background(), "b"))
	require.NoError(t, f.session.SelectConversation(context.Background(), "a"))
	assert.Eventually(t, func() bool {
		return f.session.ThreadState() == StateReady
	}, waitFor, tick)

	close(gate)
	f.session.Wait()
	assert.Equal(t, "a", f.session.SelectedID())
	assert.Equal(t, []string{"new"}, messageIDs(f.session.Messages()))
}

func TestSession_historyFailure(t *testing.T) {
	f := newFixture(t)
	f.store.historyErr["a"] = errNetwork

	require.NoError(t, f.session.SelectConversation(context.Background(), "a"))
	f.session.Wait()
	assert.Equal(t, StateError, f.session.ThreadState())
	assert.Equal(t, "a", f.session.SelectedID())
	assert.Empty(t, f.session.Messages())

	notices := f.events.notices()
	require.Len(t, notices, 1)
	assert.Equal(t, NoticeHistoryFailed, notices[0].Kind)
	assert.True(t, IsTransport(notices[0].Err))

	_, ok := f.session.SendMessage(context.Background(), "hello?")
	assert.False(t, ok)

	// retry by selecting again
	f.store.mu.Lock()
	delete(f.store.historyErr, "a")
	f.store.mu.Unlock()
	require.NoError(t, f.session.SelectConversation(context.Background(), "a"))
	f.session.Wait()
	assert.Equal(t, StateReady, f.session.ThreadState())
	assert.Len(t, f.session.Messages(), 2)
}

func TestSession_markRead(t *testing.T) {
	tests := []struct {
		name     string
		unread   int
		history  []ChatMessage
		wantCall bool
	}{
		{
			name:     "unread counter",
			unread:   2,
			history:  []ChatMessage{msgAt("1", "a", "hi", day0, false), msgAt("2", "a", "there", day0, false)},
			wantCall: true,
		},
		{
			name:     "unread messages only",
			unread:   0,
			history:  []ChatMessage{msgAt("1", "a", "hi", day0, false)},
			wantCall: true,
		},
		{
			name:     "only own unread messages",
			unread:   0,
			history:  []ChatMessage{msgAt("1", "me", "hi", day0, false)},
			wantCall: false,
		},
		{
			name:     "nothing unread",
			unread:   0,
			history:  []ChatMessage{msgAt("1", "a", "hi", day0, true)},
			wantCall: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.store.convs = []Conversation{conv("a", "Amina Yusuf", core.RoleStudent, day0, tt.unread)}
			f.store.history["a"] = tt.history
			require.NoError(t, f.session.LoadConversations(context.Background()))

			require.NoError(t, f.session.SelectConversation(context.Background(), "a"))
			f.session.Wait()

			a, ok := f.session.Conversation("a")
			require.True(t, ok)
			assert.Equal(t, 0, a.UnreadCount)
			for _, m := range f.session.Messages() {
				if m.SenderID != "me" {
					assert.True(t, m.IsRead)
				}
			}
			if tt.wantCall {
				assert.Equal(t, []string{"a"}, f.store.markedReadPeers())
			} else {
				assert.Empty(t, f.store.markedReadPeers())
			}
		})
	}
}

func TestSession_markReadFailureSwallowed(t *testing.T) {
	f := newFixture(t)
	f.store.convs = []Conversation{conv("a", "Amina Yusuf", core.RoleStudent, day0, 1)}
	f.store.history["a"] = []ChatMessage{msgAt("1", "a", "hi", day0, false)}
	f.store.markReadErr = &TransportError{Op: "marking read", StatusCode: 500, Err: errNetwork}
	require.NoError(t, f.session.LoadConversations(context.Background()))
	f.events.reset()

	require.NoError(t, f.session.SelectConversation(context.Background(), "a"))
	f.session.Wait()

	assert.Equal(t, []string{"a"}, f.store.markedReadPeers())
	assert.Equal(t, StateReady, f.session.ThreadState())
	assert.Empty(t, f.events.notices())
	assert.True(t, f.logger.debugged("marking thread read"))
}

// P3
func TestSession_markReadIdempotent(t *testing.T) {
	f := newFixture(t)
	f.open(t, "a")
	before := f.session.Conversations(ConversationFilter{})
	f.open(t, "a")
	assert.Equal(t, before, f.session.Conversations(ConversationFilter{}))
	assert.Empty(t, f.store.markedReadPeers())
}

func TestSession_Close(t *testing.T) {
	f := newFixture(t)
	gate := f.store.hold("a", 1)

	require.NoError(t, f.session.SelectConversation(context.Background(), "a"))
	f.session.Close()
	assert.Equal(t, StateIdle, f.session.ThreadState())

	close(gate)
	f.session.Wait()
	assert.Equal(t, StateIdle, f.session.ThreadState())
	assert.Equal(t, "", f.session.SelectedID())
	assert.Empty(t, f.session.Messages())

	f.events.reset()
	f.session.Close()
	assert.Empty(t, f.events.kinds(), "closing an idle thread changes nothing")
}

func TestSession_Scenario(t *testing.T) {
	s := NewSession(Options{UserID: "t1", Store: newFakeStore(), Location: time.UTC})
	fatima := Contact{ID: "p1", Name: "Fatima Ali", Role: core.RoleParent}

	started := s.StartThread(fatima)
	assert.Equal(t, 0, started.UnreadCount)
	assert.Equal(t, DefaultPlaceholder, started.LastMessagePreview)
	assert.Equal(t, fatima.Peer(), started.Peer)
	convs := s.Conversations(ConversationFilter{})
	require.Len(t, convs, 1)
	assert.Equal(t, "p1", convs[0].ID)

	again := s.StartThread(fatima)
	assert.Equal(t, started, again)

	require.NoError(t, s.SelectConversation(context.Background(), "p1"))
	s.Wait()
	_, ok := s.SendMessage(context.Background(), "Salaam, quick update on Omar")
	require.True(t, ok)
	s.Wait()

	msgs := s.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "Salaam, quick update on Omar", msgs[0].Content)
	convs = s.Conversations(ConversationFilter{})
	require.Len(t, convs, 1)
	assert.Equal(t, "Salaam, quick update on Omar", convs[0].LastMessagePreview)
	assert.Equal(t, fatima.Peer(), convs[0].Peer)
}

func TestSession_StartThread_existing(t *testing.T) {
	f := newFixture(t)
	existing, _ := f.session.Conversation("a")

	got := f.session.StartThread(Contact{ID: "a", Name: "Renamed", Role: core.RoleStudent})
	assert.Equal(t, existing, got)
	assert.Empty(t, f.events.kinds())
	assert.Len(t, f.session.Conversations(ConversationFilter{}), 2)
}

func TestSession_OpenContact(t *testing.T) {
	f := newFixture(t)
	f.store.contacts["t1"] = Contact{ID: "t1", Name: "Ustadh Idris", Role: core.RoleTeacher}

	opened, err := f.session.OpenContact(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, "Ustadh Idris", opened.Peer.Name)
	assert.Equal(t, "t1", f.session.Conversations(ConversationFilter{})[0].ID)
	assert.Equal(t, []EventKind{EventConversationsChanged}, f.events.kinds())

	listed, err := f.session.OpenContact(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "Amina Yusuf", listed.Peer.Name)

	_, err = f.session.OpenContact(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, IsTransport(err))
	notices := f.events.notices()
	require.Len(t, notices, 1)
	assert.Equal(t, NoticeContactFailed, notices[0].Kind)
	assert.Equal(t, "ghost", notices[0].ConversationID)
}

func TestSession_Subscribe(t *testing.T) {
	f := newFixture(t)

	// handlers may read the session
	var states []ThreadState
	unsubscribe := f.session.Subscribe(func(ev Event) {
		if ev.Kind == EventThreadChanged {
			states = append(states, f.session.Snapshot().State)
		}
	})
	require.NoError(t, f.session.SelectConversation(context.Background(), "b"))
	f.session.Wait()
	assert.Equal(t, []ThreadState{StateLoading, StateReady}, states)

	unsubscribe()
	f.session.Close()
	assert.Len(t, states, 2)
	assert.Equal(t, EventThreadChanged, f.events.kinds()[len(f.events.kinds())-1])
}
