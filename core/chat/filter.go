package chat

import (
	"strings"

	"github.com/trezcool/madrasa/core"
)

// ConversationFilter selects conversations by peer name and role.
// The zero value matches everything.
type ConversationFilter struct {
	SearchText string
	Role       core.Role
}

// Match does a case-insensitive substring match of SearchText on the peer name,
// AND-ed with the role (RoleAll matches any role).
func (f ConversationFilter) Match(c Conversation) bool {
	if f.Role != core.RoleAll && c.Peer.Role != f.Role {
		return false
	}
	return strings.Contains(strings.ToLower(c.Peer.Name), strings.ToLower(f.SearchText))
}
