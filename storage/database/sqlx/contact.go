package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/madrasa/core"
	"github.com/trezcool/madrasa/core/contact"
)

const contactColumns = `id, name, role, avatar_url, email, created_at, updated_at`

var (
	contactOrdering = []core.DBOrdering{{Field: "lower(name)", Ascending: true}, {Field: "id", Ascending: true}}
	likeEscaper     = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
)

type contactRepository struct {
	exec core.DBExecutor
}

var _ contact.Repository = (*contactRepository)(nil) // interface compliance check

func NewContactRepository(exec core.DBExecutor) contact.Repository {
	return &contactRepository{exec: exec}
}

// trapNoRowsErr maps psql "no rows" err to contact.ErrNotFound
func (repo contactRepository) trapNoRowsErr(err error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return contact.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo contactRepository) GetContact(ctx context.Context, id string) (contact.Contact, error) {
	var c contact.Contact
	q := `SELECT ` + contactColumns + ` FROM contacts WHERE id = $1`
	if err := repo.exec.GetContext(ctx, &c, q, id); err != nil {
		return contact.Contact{}, repo.trapNoRowsErr(err, "selecting contact")
	}
	return c, nil
}

func (repo contactRepository) FilterContacts(ctx context.Context, filter contact.QueryFilter) ([]contact.Contact, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.Search != "" {
		args = append(args, "%"+likeEscaper.Replace(filter.Search)+"%")
		where = append(where, fmt.Sprintf("name ILIKE $%d", len(args)))
	}
	if filter.Role != core.RoleAll {
		args = append(args, filter.Role.String())
		where = append(where, fmt.Sprintf("role = $%d", len(args)))
	}

	q := new(strings.Builder)
	q.WriteString(`SELECT ` + contactColumns + ` FROM contacts`)
	if len(where) > 0 {
		q.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	order := make([]string, 0, len(contactOrdering))
	for _, ord := range contactOrdering {
		order = append(order, ord.String())
	}
	q.WriteString(" ORDER BY " + strings.Join(order, ", "))

	contacts := make([]contact.Contact, 0)
	if err := repo.exec.SelectContext(ctx, &contacts, q.String(), args...); err != nil {
		return nil, errors.Wrap(err, "selecting contacts")
	}
	return contacts, nil
}

func (repo contactRepository) UpsertContact(ctx context.Context, c contact.Contact) (contact.Contact, error) {
	q := `INSERT INTO contacts (` + contactColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			role = EXCLUDED.role,
			avatar_url = EXCLUDED.avatar_url,
			email = EXCLUDED.email,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + contactColumns

	var saved contact.Contact
	err := repo.exec.GetContext(ctx, &saved, q,
		c.ID, c.Name, c.Role, c.AvatarURL, c.Email, c.CreatedAt.UTC(), c.UpdatedAt.UTC())
	if err != nil {
		return contact.Contact{}, errors.Wrap(err, "upserting contact")
	}
	return saved, nil
}
