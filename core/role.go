package core

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// Role is the role a person plays in the school. RoleAll only ever appears in filters.
type Role int

const (
	RoleAll Role = iota
	RoleStudent
	RoleParent
	RoleTeacher
	RoleAdmin
)

var (
	roleNames = map[Role]string{
		RoleAll:     "ALL",
		RoleStudent: "STUDENT",
		RoleParent:  "PARENT",
		RoleTeacher: "TEACHER",
		RoleAdmin:   "ADMIN",
	}

	// Roles lists the roles a contact can have.
	Roles = []Role{RoleStudent, RoleParent, RoleTeacher, RoleAdmin}
)

// ParseRole parses the wire name of a role (case-insensitive). An empty string is RoleAll.
func ParseRole(s string) (Role, error) {
	s = CleanString(s)
	if s == "" {
		return RoleAll, nil
	}
	for r, name := range roleNames {
		if strings.EqualFold(s, name) {
			return r, nil
		}
	}
	return RoleAll, fmt.Errorf("unknown role %q", s)
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("Role(%d)", int(r))
}

// IsContactRole reports whether r can be held by a contact.
func (r Role) IsContactRole() bool {
	return r > RoleAll && r <= RoleAdmin
}

func (r Role) MarshalText() ([]byte, error) {
	if _, ok := roleNames[r]; !ok {
		return nil, fmt.Errorf("invalid role %d", int(r))
	}
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(b []byte) error {
	parsed, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Scan implements sql.Scanner.
func (r *Role) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		return r.UnmarshalText([]byte(v))
	case []byte:
		return r.UnmarshalText(v)
	case nil:
		*r = RoleAll
		return nil
	}
	return fmt.Errorf("cannot scan %T into Role", src)
}

// Value implements driver.Valuer.
func (r Role) Value() (driver.Value, error) {
	if !r.IsContactRole() {
		return nil, fmt.Errorf("role %s cannot be stored", r)
	}
	return r.String(), nil
}
