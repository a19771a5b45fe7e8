package main

import (
	"context"
	"fmt"

	"github.com/trezcool/madrasa/core/contact"
)

// addContact updates or creates a contact.Contact
func (cli *commandLine) addContact(nc contact.NewContact) error {
	if err := nc.Validate(cli.validate); err != nil {
		return err
	}
	c, err := cli.contactSvc.Upsert(context.Background(), nc)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cli.out, "saved %s %q (%s)\n", c.Role, c.Name, c.ID)
	return nil
}
