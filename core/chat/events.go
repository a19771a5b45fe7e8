package chat

type EventKind int

const (
	EventConversationsChanged EventKind = iota + 1
	EventThreadChanged
	EventNotice
)

type NoticeKind int

const (
	NoticeLoadFailed NoticeKind = iota + 1
	NoticeHistoryFailed
	NoticeDeliveryFailed
	NoticeContactFailed
)

// Notice is a transient, dismissible notification for the user.
type Notice struct {
	Kind           NoticeKind
	ConversationID string
	Err            error
}

func (n Notice) Message() string {
	switch n.Kind {
	case NoticeLoadFailed:
		return "Could not load your conversations."
	case NoticeHistoryFailed:
		return "Could not load this conversation. Select it again to retry."
	case NoticeDeliveryFailed:
		return "Your message could not be delivered."
	case NoticeContactFailed:
		return "Could not find this contact."
	}
	return "Something went wrong."
}

// Event is delivered to Session subscribers after each state change.
type Event struct {
	Kind   EventKind
	Notice *Notice
}

func noticeEvent(kind NoticeKind, convID string, err error) Event {
	return Event{Kind: EventNotice, Notice: &Notice{Kind: kind, ConversationID: convID, Err: err}}
}
