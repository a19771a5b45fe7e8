package chat

import (
	"sort"
	"time"
)

type ThreadState int

const (
	StateIdle ThreadState = iota
	StateLoading
	StateReady
	StateError
)

func (s ThreadState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	}
	return "unknown"
}

// FetchTicket identifies one history fetch. Only the ticket of the latest selection is applied.
type FetchTicket struct {
	ConversationID string
	Seq            uint64
}

// Thread is the state machine of the conversation open on screen. It does no I/O:
// callers issue the fetch for the ticket returned by Select and report back.
type Thread struct {
	state  ThreadState
	convID string
	seq    uint64
	msgs   []ChatMessage
	err    error
}

func NewThread() *Thread {
	return new(Thread)
}

func (t *Thread) State() ThreadState     { return t.state }
func (t *Thread) ConversationID() string { return t.convID }
func (t *Thread) Err() error             { return t.err }

// Messages returns a copy of the loaded messages, oldest first.
func (t *Thread) Messages() []ChatMessage {
	msgs := make([]ChatMessage, len(t.msgs))
	copy(msgs, t.msgs)
	return msgs
}

func (t *Thread) Len() int { return len(t.msgs) }

// Groups groups the loaded messages by calendar day in loc.
func (t *Thread) Groups(loc *time.Location) []DayGroup {
	return GroupByDay(t.msgs, loc)
}

// Select switches to conversation id and starts Loading.
func (t *Thread) Select(id string) FetchTicket {
	t.seq++
	t.state = StateLoading
	t.convID = id
	t.msgs = nil
	t.err = nil
	return FetchTicket{ConversationID: id, Seq: t.seq}
}

// Close goes back to Idle. In-flight fetches become stale.
func (t *Thread) Close() {
	t.seq++
	t.state = StateIdle
	t.convID = ""
	t.msgs = nil
	t.err = nil
}

func (t *Thread) current(tk FetchTicket) bool {
	return t.state == StateLoading && tk.Seq == t.seq && tk.ConversationID == t.convID
}

// HistoryLoaded applies a fetched history and reports false when tk is stale.
func (t *Thread) HistoryLoaded(tk FetchTicket, msgs []ChatMessage) bool {
	if !t.current(tk) {
		return false
	}
	loaded := make([]ChatMessage, len(msgs))
	copy(loaded, msgs)
	sort.SliceStable(loaded, func(i, j int) bool {
		return loaded[i].CreatedAt.Before(loaded[j].CreatedAt)
	})
	t.msgs = loaded
	t.state = StateReady
	return true
}

// HistoryFailed moves to Error without any messages and reports false when tk is stale.
func (t *Thread) HistoryFailed(tk FetchTicket, err error) bool {
	if !t.current(tk) {
		return false
	}
	t.msgs = nil
	t.err = err
	t.state = StateError
	return true
}

// Append inserts msg after every message not newer than it. Only a Ready thread accepts messages.
func (t *Thread) Append(msg ChatMessage) bool {
	if t.state != StateReady {
		return false
	}
	pos := sort.Search(len(t.msgs), func(i int) bool {
		return t.msgs[i].CreatedAt.After(msg.CreatedAt)
	})
	t.msgs = append(t.msgs, ChatMessage{})
	copy(t.msgs[pos+1:], t.msgs[pos:])
	t.msgs[pos] = msg
	return true
}

// Confirm clears Pending on the message with the given id.
func (t *Thread) Confirm(id string) bool {
	for i := range t.msgs {
		if t.msgs[i].ID == id {
			t.msgs[i].Pending = false
			return true
		}
	}
	return false
}

// MarkPeerMessagesRead flips IsRead on messages not sent by userID and returns how many changed.
func (t *Thread) MarkPeerMessagesRead(userID string) int {
	var n int
	for i := range t.msgs {
		if t.msgs[i].SenderID != userID && !t.msgs[i].IsRead {
			t.msgs[i].IsRead = true
			n++
		}
	}
	return n
}
