package chat

import (
	"sort"
	"time"
)

// ConversationList is the ordered set of conversations of the signed-in user.
// Conversations are kept by LastActivityAt, most recent first, with at most one per peer.
type ConversationList struct {
	items []Conversation
}

func NewConversationList(convs ...Conversation) *ConversationList {
	l := new(ConversationList)
	l.Replace(convs)
	return l
}

func (l *ConversationList) Len() int { return len(l.items) }

func (l *ConversationList) index(id string) int {
	for i := range l.items {
		if l.items[i].ID == id {
			return i
		}
	}
	return -1
}

func (l *ConversationList) Get(id string) (Conversation, bool) {
	if i := l.index(id); i >= 0 {
		return l.items[i], true
	}
	return Conversation{}, false
}

// Upsert inserts conv at the head, or replaces the conversation with the same ID and moves it to the head.
// Callers keep the list ordered by stamping conv with HeadActivity.
func (l *ConversationList) Upsert(conv Conversation) {
	if i := l.index(conv.ID); i >= 0 {
		l.items = append(l.items[:i], l.items[i+1:]...)
	}
	l.items = append(l.items, Conversation{})
	copy(l.items[1:], l.items)
	l.items[0] = conv
}

// HeadActivity returns at, or the activity of the head conversation when it is more recent.
// Local events are stamped with it so they are never dated before the newest conversation.
func (l *ConversationList) HeadActivity(at time.Time) time.Time {
	if len(l.items) > 0 && l.items[0].LastActivityAt.After(at) {
		return l.items[0].LastActivityAt
	}
	return at
}

// MarkRead zeroes the unread counter. Unknown IDs are ignored.
func (l *ConversationList) MarkRead(id string) {
	if i := l.index(id); i >= 0 {
		l.items[i].UnreadCount = 0
	}
}

// Replace reloads the list from convs. Conversations only known locally
// (threads started but not yet persisted) are kept.
func (l *ConversationList) Replace(convs []Conversation) {
	seen := make(map[string]struct{}, len(convs))
	items := make([]Conversation, 0, len(convs)+len(l.items))
	for _, c := range convs {
		if _, dup := seen[c.ID]; dup {
			continue
		}
		seen[c.ID] = struct{}{}
		items = append(items, c)
	}
	for _, c := range l.items {
		if _, ok := seen[c.ID]; !ok {
			items = append(items, c)
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].LastActivityAt.After(items[j].LastActivityAt)
	})
	l.items = items
}

// List returns a lazy iterator over the conversations matching filter, in list order.
func (l *ConversationList) List(filter ConversationFilter) *ConversationIter {
	return &ConversationIter{list: l, filter: filter}
}

// Conversations collects List(filter).
func (l *ConversationList) Conversations(filter ConversationFilter) []Conversation {
	convs := make([]Conversation, 0, len(l.items))
	it := l.List(filter)
	for c, ok := it.Next(); ok; c, ok = it.Next() {
		convs = append(convs, c)
	}
	return convs
}

// ConversationIter walks a ConversationList; Reset restarts it.
// It reads the list as it is when Next is called, so it must not be used while the list is
// being modified: a Session only hands out collected slices, never iterators.
type ConversationIter struct {
	list   *ConversationList
	filter ConversationFilter
	pos    int
}

func (it *ConversationIter) Next() (Conversation, bool) {
	for it.pos < len(it.list.items) {
		c := it.list.items[it.pos]
		it.pos++
		if it.filter.Match(c) {
			return c, true
		}
	}
	return Conversation{}, false
}

func (it *ConversationIter) Reset() { it.pos = 0 }
