package chat

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/madrasa/core"
)

// TempIDPrefix marks message ids generated locally for optimistic sends.
const TempIDPrefix = "tmp-"

var ErrConversationNotFound = errors.New("conversation not found")

type Options struct {
	UserID      string
	Store       MessageStore
	Logger      core.Logger
	Location    *time.Location   // day grouping; time.Local when nil
	Now         func() time.Time // mockable
	NewID       func() string    // mockable; uuid when nil
	Placeholder string
}

// Session is the chat state of the signed-in user: the conversation list and the open thread.
//
// Every mutation, whether from a caller or from a store completion, runs under one lock,
// so state changes never interleave. Store calls happen in goroutines; a completion for a
// thread that is no longer selected is discarded. Subscribers are called one event at a time,
// in mutation order, without the lock held.
type Session struct {
	userID string
	store  MessageStore
	logger core.Logger
	loc    *time.Location
	now    func() time.Time
	newID  func() string

	mu       sync.Mutex
	list     *ConversationList
	thread   *Thread
	resolver *ContactResolver
	subs     map[int]func(Event)
	nextSub  int
	queue    []Event
	emitting bool

	// latest local send per conversation, re-applied over reloads the store may not reflect yet
	sends   map[string]localSend
	sendSeq uint64

	inFlight sync.WaitGroup
}

func NewSession(opts Options) *Session {
	s := &Session{
		userID: opts.UserID,
		store:  opts.Store,
		logger: opts.Logger,
		loc:    opts.Location,
		now:    opts.Now,
		newID:  opts.NewID,
		list:   NewConversationList(),
		thread: NewThread(),
		subs:   make(map[int]func(Event)),
		sends:  make(map[string]localSend),
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = core.NopLogger{}
	}
	if s.newID == nil {
		s.newID = func() string { return uuid.NewString() }
	}
	s.resolver = NewContactResolver(s.list, s.now, opts.Placeholder)
	return s
}

func (s *Session) UserID() string { return s.userID }

// Subscribe registers fn for every Event; the returned func unregisters it.
func (s *Session) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// commit queues events, releases s.mu and delivers the queue unless another
// goroutine already does. Must be called with s.mu held.
func (s *Session) commit(events ...Event) {
	s.queue = append(s.queue, events...)
	if s.emitting {
		s.mu.Unlock()
		return
	}
	s.emitting = true
	for len(s.queue) > 0 {
		batch := s.queue
		s.queue = nil
		handlers := make([]func(Event), 0, len(s.subs))
		for i := 0; i < s.nextSub; i++ {
			if fn, ok := s.subs[i]; ok {
				handlers = append(handlers, fn)
			}
		}
		s.mu.Unlock()

		for _, ev := range batch {
			for _, fn := range handlers {
				fn(ev)
			}
		}
		s.mu.Lock()
	}
	s.emitting = false
	s.mu.Unlock()
}

func (s *Session) async(fn func()) {
	s.inFlight.Add(1)
	go func() {
		defer s.inFlight.Done()
		fn()
	}()
}

// Wait blocks until every in-flight store call has completed and been applied.
func (s *Session) Wait() {
	s.inFlight.Wait()
}

// Conversation list

type localSend struct {
	preview  string
	at       time.Time
	seq      uint64
	inFlight int
}

// LoadConversations replaces the list with the conversations known to the store.
// Sends still in flight, or started after the fetch, keep their preview and stay on top.
func (s *Session) LoadConversations(ctx context.Context) error {
	s.mu.Lock()
	fetchSeq := s.sendSeq
	s.mu.Unlock()

	convs, err := s.store.FetchConversations(ctx)
	s.mu.Lock()
	if err != nil {
		s.commit(noticeEvent(NoticeLoadFailed, "", err))
		return errors.Wrap(err, "loading conversations")
	}
	s.list.Replace(convs)

	peers := make([]string, 0, len(s.sends))
	for peerID, ls := range s.sends {
		if ls.inFlight == 0 && ls.seq <= fetchSeq {
			delete(s.sends, peerID)
			continue
		}
		peers = append(peers, peerID)
	}
	sort.Slice(peers, func(i, j int) bool { return s.sends[peers[i]].seq < s.sends[peers[j]].seq })
	for _, peerID := range peers {
		ls := s.sends[peerID]
		s.touch(peerID, ls.preview, ls.at)
	}
	s.commit(Event{Kind: EventConversationsChanged})
	return nil
}

// touch moves conversation peerID to the head with preview as its last message.
func (s *Session) touch(peerID, preview string, at time.Time) {
	conv, found := s.list.Get(peerID)
	if !found {
		conv = Conversation{ID: peerID, Peer: Peer{ID: peerID}}
	}
	conv.LastMessagePreview = preview
	conv.LastActivityAt = s.list.HeadActivity(at)
	s.list.Upsert(conv)
}

// Conversations returns the conversations matching filter, most recent first.
func (s *Session) Conversations(filter ConversationFilter) []Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list.Conversations(filter)
}

func (s *Session) Conversation(id string) (Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list.Get(id)
}

// StartThread returns the conversation with c, creating an empty one at the head of the list if needed.
func (s *Session) StartThread(c Contact) Conversation {
	s.mu.Lock()
	conv, created := s.resolver.StartThread(c)
	if !created {
		s.mu.Unlock()
		return conv
	}
	s.commit(Event{Kind: EventConversationsChanged})
	return conv
}

// OpenContact is StartThread for a peer known only by id: its profile is resolved through the store.
func (s *Session) OpenContact(ctx context.Context, peerID string) (Conversation, error) {
	if conv, ok := s.Conversation(peerID); ok {
		return conv, nil
	}
	c, err := s.store.FetchContact(ctx, peerID)
	if err != nil {
		s.mu.Lock()
		s.commit(noticeEvent(NoticeContactFailed, peerID, err))
		return Conversation{}, errors.Wrapf(err, "resolving contact %q", peerID)
	}
	return s.StartThread(c), nil
}

// Active thread

func (s *Session) ThreadState() ThreadState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.thread.State()
}

// SelectedID returns the id of the selected conversation ("" when Idle).
func (s *Session) SelectedID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.thread.ConversationID()
}

func (s *Session) Messages() []ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.thread.Messages()
}

func (s *Session) Groups() []DayGroup {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.thread.Groups(s.loc)
}

// SelectConversation opens conversation id and loads its history in the background.
// ctx must outlive the call: it is used by the fetch and the read notification.
func (s *Session) SelectConversation(ctx context.Context, id string) error {
	s.mu.Lock()
	if _, ok := s.list.Get(id); !ok {
		s.mu.Unlock()
		return errors.Wrapf(ErrConversationNotFound, "selecting %q", id)
	}
	ticket := s.thread.Select(id)
	s.commit(Event{Kind: EventThreadChanged})

	s.async(func() { s.loadHistory(ctx, ticket) })
	return nil
}

func (s *Session) loadHistory(ctx context.Context, ticket FetchTicket) {
	msgs, err := s.store.FetchHistory(ctx, ticket.ConversationID)

	s.mu.Lock()
	if err != nil {
		if !s.thread.HistoryFailed(ticket, err) {
			s.mu.Unlock()
			s.logger.Debug("discarding stale history failure", map[string]interface{}{"conversation": ticket.ConversationID})
			return
		}
		s.commit(Event{Kind: EventThreadChanged}, noticeEvent(NoticeHistoryFailed, ticket.ConversationID, err))
		return
	}
	if !s.thread.HistoryLoaded(ticket, msgs) {
		s.mu.Unlock()
		s.logger.Debug("discarding stale history", map[string]interface{}{"conversation": ticket.ConversationID})
		return
	}

	events := []Event{{Kind: EventThreadChanged}}
	conv, _ := s.list.Get(ticket.ConversationID)
	flipped := s.thread.MarkPeerMessagesRead(s.userID)
	if conv.UnreadCount > 0 || flipped > 0 {
		s.list.MarkRead(ticket.ConversationID)
		events = append(events, Event{Kind: EventConversationsChanged})
		s.async(func() { s.notifyRead(ctx, ticket.ConversationID) })
	}
	s.commit(events...)
}

// notifyRead tells the store the thread was read. Failures are only logged.
func (s *Session) notifyRead(ctx context.Context, peerID string) {
	if err := s.store.MarkRead(ctx, peerID); err != nil {
		s.logger.Debug("marking thread read: "+err.Error(), err)
	}
}

// SendMessage appends a message to the Ready thread right away and delivers it in the background.
// Blank text, or no Ready thread, is a no-op: ok is false.
func (s *Session) SendMessage(ctx context.Context, text string) (msg ChatMessage, ok bool) {
	content := core.CleanString(text)
	if content == "" {
		return ChatMessage{}, false
	}

	s.mu.Lock()
	if s.thread.State() != StateReady {
		s.mu.Unlock()
		return ChatMessage{}, false
	}
	peerID := s.thread.ConversationID()
	now := s.now()
	msg = ChatMessage{
		ID:        TempIDPrefix + s.newID(),
		SenderID:  s.userID,
		Content:   content,
		CreatedAt: now,
		Pending:   true,
	}
	s.thread.Append(msg)
	s.touch(peerID, content, now)

	s.sendSeq++
	ls := s.sends[peerID]
	s.sends[peerID] = localSend{preview: content, at: now, seq: s.sendSeq, inFlight: ls.inFlight + 1}
	s.commit(Event{Kind: EventThreadChanged}, Event{Kind: EventConversationsChanged})

	s.async(func() { s.deliver(ctx, peerID, msg) })
	return msg, true
}

// deliver sends msg to the store. A failed message stays in the thread, still Pending.
func (s *Session) deliver(ctx context.Context, peerID string, msg ChatMessage) {
	err := s.store.SendMessage(ctx, peerID, msg.Content)

	s.mu.Lock()
	if ls, ok := s.sends[peerID]; ok {
		ls.inFlight--
		s.sends[peerID] = ls
	}
	if err != nil {
		s.commit(noticeEvent(NoticeDeliveryFailed, peerID, err))
		s.logger.Warn("message not delivered", err, map[string]interface{}{"conversation": peerID, "message": msg.ID})
		return
	}
	if s.thread.ConversationID() == peerID && s.thread.Confirm(msg.ID) {
		s.commit(Event{Kind: EventThreadChanged})
		return
	}
	s.mu.Unlock()
}

// Close leaves the open thread.
func (s *Session) Close() {
	s.mu.Lock()
	if s.thread.State() == StateIdle {
		s.mu.Unlock()
		return
	}
	s.thread.Close()
	s.commit(Event{Kind: EventThreadChanged})
}

// Snapshot is a consistent copy of the whole session state.
type Snapshot struct {
	State          ThreadState
	ConversationID string
	Conversations  []Conversation
	Messages       []ChatMessage
	Groups         []DayGroup
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		State:          s.thread.State(),
		ConversationID: s.thread.ConversationID(),
		Conversations:  s.list.Conversations(ConversationFilter{}),
		Messages:       s.thread.Messages(),
		Groups:         s.thread.Groups(s.loc),
	}
}
