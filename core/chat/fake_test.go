package chat

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
)

var errNetwork = errors.New("connection refused")

type sentMessage struct {
	peerID  string
	content string
}

// fakeStore is a MessageStore whose history calls can be held until a gate is closed.
// Gates and canned responses are keyed by peer and call number (1-based).
type fakeStore struct {
	mu sync.Mutex

	history     map[string][]ChatMessage
	historyErr  map[string]error
	respond     func(peerID string, call int) ([]ChatMessage, error)
	historyGate map[string]chan struct{}
	historyHits map[string]int

	sendErr  error
	sendGate chan struct{}
	sent     []sentMessage

	markReadErr error
	markedRead  []string

	convs    []Conversation
	convsErr error
	contacts map[string]Contact
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		history:     make(map[string][]ChatMessage),
		historyErr:  make(map[string]error),
		historyGate: make(map[string]chan struct{}),
		historyHits: make(map[string]int),
		contacts:    make(map[string]Contact),
	}
}

func callKey(peerID string, call int) string {
	return peerID + "#" + strconv.Itoa(call)
}

// hold makes the call-th FetchHistory of peerID block until the returned gate is closed.
func (f *fakeStore) hold(peerID string, call int) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	gate := make(chan struct{})
	f.historyGate[callKey(peerID, call)] = gate
	return gate
}

func (f *fakeStore) hits(peerID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.historyHits[peerID]
}

func (f *fakeStore) FetchHistory(ctx context.Context, peerID string) ([]ChatMessage, error) {
	f.mu.Lock()
	f.historyHits[peerID]++
	call := f.historyHits[peerID]
	gate := f.historyGate[callKey(peerID, call)]
	msgs := append([]ChatMessage(nil), f.history[peerID]...)
	err := f.historyErr[peerID]
	if f.respond != nil {
		msgs, err = f.respond(peerID, call)
	}
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, &TransportError{Op: "fetching history", Err: err}
	}
	return msgs, nil
}

func (f *fakeStore) SendMessage(ctx context.Context, peerID, content string) error {
	f.mu.Lock()
	gate := f.sendGate
	err := f.sendErr
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err != nil {
		return &TransportError{Op: "sending message", StatusCode: 502, Err: err}
	}
	f.mu.Lock()
	f.sent = append(f.sent, sentMessage{peerID: peerID, content: content})
	f.mu.Unlock()
	return nil
}

func (f *fakeStore) MarkRead(_ context.Context, peerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markedRead = append(f.markedRead, peerID)
	return f.markReadErr
}

func (f *fakeStore) FetchConversations(context.Context) ([]Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.convsErr != nil {
		return nil, &TransportError{Op: "fetching conversations", Err: f.convsErr}
	}
	return append([]Conversation(nil), f.convs...), nil
}

func (f *fakeStore) FetchContact(_ context.Context, peerID string) (Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.contacts[peerID]; ok {
		return c, nil
	}
	return Contact{}, &TransportError{Op: "fetching contact", StatusCode: 404, Err: errors.New("not found")}
}

func (f *fakeStore) sentMessages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sent...)
}

func (f *fakeStore) markedReadPeers() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.markedRead...)
}

// clock hands out strictly increasing times, one minute apart.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock(start time.Time) *clock { return &clock{t: start} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Minute)
	return c.t
}

type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (s *seqIDs) Next() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return strconv.Itoa(s.n)
}

func msgAt(id, sender, content string, ts time.Time, isRead bool) ChatMessage {
	return ChatMessage{ID: id, SenderID: sender, Content: content, CreatedAt: ts, IsRead: isRead}
}
