package contact

import (
	"net/mail"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/madrasa/core"
	"github.com/trezcool/madrasa/core/chat"
)

// Contact is a person of the school directory: anyone who can send or receive messages.
type Contact struct {
	ID        string      `json:"id" db:"id"`
	Name      string      `json:"name" db:"name"`
	Role      core.Role   `json:"role" db:"role"`
	AvatarURL null.String `json:"avatarUrl" db:"avatar_url"`
	Email     null.String `json:"-" db:"email"`
	CreatedAt time.Time   `json:"-" db:"created_at"` // UTC
	UpdatedAt time.Time   `json:"-" db:"updated_at"` // UTC
}

func (c Contact) Peer() chat.Peer {
	return chat.Peer{ID: c.ID, Name: c.Name, Role: c.Role, AvatarURL: c.AvatarURL.String}
}

// Address returns the email address of the contact, if any.
func (c Contact) Address() (mail.Address, bool) {
	if !c.Email.Valid || c.Email.String == "" {
		return mail.Address{}, false
	}
	return mail.Address{Name: c.Name, Address: c.Email.String}, true
}

// NewContact contains information needed to create or update a Contact.
type NewContact struct {
	ID        string `json:"id"` // generated when empty
	Name      string `json:"name" validate:"required,nonblank"`
	Role      string `json:"role" validate:"required,contactrole"`
	AvatarURL string `json:"avatarUrl" validate:"omitempty,url"`
	Email     string `json:"email" validate:"omitempty,email"`
}

func (nc *NewContact) Validate(validate *validator.Validate) error {
	nc.ID = core.CleanString(nc.ID)
	nc.Name = core.CleanString(nc.Name)
	nc.Role = strings.ToUpper(core.CleanString(nc.Role))
	nc.AvatarURL = core.CleanString(nc.AvatarURL)
	nc.Email = core.CleanString(nc.Email, true /* lower */)
	return validate.Struct(nc)
}

type QueryFilter struct {
	Search string    // case-insensitive match on Contact.Name
	Role   core.Role // RoleAll matches any role
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

func (qf QueryFilter) Match(c Contact) bool {
	if qf.Role != core.RoleAll && c.Role != qf.Role {
		return false
	}
	return strings.Contains(strings.ToLower(c.Name), strings.ToLower(qf.Search))
}
