package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/madrasa/core/contact"
)

type contactRepository struct {
	db *contactTable
}

var _ contact.Repository = (*contactRepository)(nil) // interface compliance check

func NewContactRepository(db *DB) contact.Repository {
	return &contactRepository{db: db.contact}
}

func (repo *contactRepository) GetContact(_ context.Context, id string) (contact.Contact, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if c, ok := repo.db.table[id]; ok {
		return *c, nil
	}
	return contact.Contact{}, contact.ErrNotFound
}

func (repo *contactRepository) FilterContacts(_ context.Context, filter contact.QueryFilter) ([]contact.Contact, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	contacts := make([]contact.Contact, 0, len(repo.db.table))
	for _, c := range repo.db.table {
		if filter.Match(*c) {
			contacts = append(contacts, *c)
		}
	}
	sort.Slice(contacts, func(i, j int) bool {
		ni, nj := strings.ToLower(contacts[i].Name), strings.ToLower(contacts[j].Name)
		if ni == nj {
			return contacts[i].ID < contacts[j].ID
		}
		return ni < nj
	})
	return contacts, nil
}

func (repo *contactRepository) UpsertContact(_ context.Context, c contact.Contact) (contact.Contact, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if orig, ok := repo.db.table[c.ID]; ok {
		c.CreatedAt = orig.CreatedAt
	}
	repo.db.table[c.ID] = &c
	return c, nil
}
