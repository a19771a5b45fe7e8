package chat

import "time"

// DefaultPlaceholder is the preview of a conversation without messages.
const DefaultPlaceholder = "No messages yet"

// ContactResolver turns a contact into a conversation of the list.
type ContactResolver struct {
	list        *ConversationList
	now         func() time.Time
	placeholder string
}

func NewContactResolver(list *ConversationList, now func() time.Time, placeholder string) *ContactResolver {
	if now == nil {
		now = time.Now
	}
	if placeholder == "" {
		placeholder = DefaultPlaceholder
	}
	return &ContactResolver{list: list, now: now, placeholder: placeholder}
}

// StartThread returns the existing conversation with c untouched, or registers an empty one.
// created reports whether the list changed.
func (r *ContactResolver) StartThread(c Contact) (conv Conversation, created bool) {
	if conv, ok := r.list.Get(c.ID); ok {
		return conv, false
	}
	conv = Conversation{
		ID:                 c.ID,
		Peer:               c.Peer(),
		LastMessagePreview: r.placeholder,
		LastActivityAt:     r.list.HeadActivity(r.now()),
	}
	r.list.Upsert(conv)
	return conv, true
}
