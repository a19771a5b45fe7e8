package contact

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/madrasa/core"
)

var ErrNotFound = errors.New("contact not found")

type (
	Repository interface {
		GetContact(ctx context.Context, id string) (Contact, error)
		// FilterContacts returns the contacts matching filter, ordered by name.
		FilterContacts(ctx context.Context, filter QueryFilter) ([]Contact, error)
		// UpsertContact creates the contact or updates the one with the same ID. CreatedAt is kept on update.
		UpsertContact(ctx context.Context, c Contact) (Contact, error)
	}

	Service struct {
		repo Repository
		now  func() time.Time
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

func (svc *Service) Get(ctx context.Context, id string) (Contact, error) {
	return svc.repo.GetContact(ctx, core.CleanString(id))
}

func (svc *Service) Filter(ctx context.Context, filter QueryFilter) ([]Contact, error) {
	filter.Clean()
	return svc.repo.FilterContacts(ctx, filter)
}

// Upsert saves a validated NewContact.
func (svc *Service) Upsert(ctx context.Context, nc NewContact) (Contact, error) {
	role, err := core.ParseRole(nc.Role)
	if err != nil {
		return Contact{}, core.NewFieldValidationError("role", err.Error())
	}
	id := nc.ID
	if id == "" {
		id = uuid.NewString()
	}
	now := svc.now().UTC()
	c := Contact{
		ID:        id,
		Name:      nc.Name,
		Role:      role,
		AvatarURL: null.NewString(nc.AvatarURL, nc.AvatarURL != ""),
		Email:     null.NewString(nc.Email, nc.Email != ""),
		CreatedAt: now,
		UpdatedAt: now,
	}
	c, err = svc.repo.UpsertContact(ctx, c)
	return c, errors.Wrap(err, "saving contact")
}
