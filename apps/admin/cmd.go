package main

import (
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	"github.com/trezcool/madrasa/core"
	"github.com/trezcool/madrasa/core/contact"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	conf       *core.Config
	db         *sqlx.DB
	contactSvc *contact.Service
	validate   *validator.Validate
	out        io.Writer
}

func (cli *commandLine) printUsage() {
	_, _ = fmt.Fprintln(cli.out, "Usage:")
	_, _ = fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a goose command (up, down, status, ...) on the database")
	_, _ = fmt.Fprintln(cli.out, "  addcontact -name NAME -role ROLE [-id ID] [-email EMAIL] [-avatar URL] - create or update a contact")
	_, _ = fmt.Fprintln(cli.out, "  token -id ID - issue an API token for a contact")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addContactCmd := flag.NewFlagSet("addcontact", flag.ContinueOnError)
	addContactCmd.SetOutput(cli.out)
	addContactID := addContactCmd.String("id", "", "The contact ID. Generated when empty.")
	addContactName := addContactCmd.String("name", "", "The contact's display name.")
	addContactRole := addContactCmd.String("role", "", "One of STUDENT, PARENT, TEACHER or ADMIN.")
	addContactEmail := addContactCmd.String("email", "", "Where new message notifications are sent.")
	addContactAvatar := addContactCmd.String("avatar", "", "The contact's avatar URL.")

	tokenCmd := flag.NewFlagSet("token", flag.ContinueOnError)
	tokenCmd.SetOutput(cli.out)
	tokenID := tokenCmd.String("id", "", "The contact ID.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "addcontact":
		if err := addContactCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addContactName == "" || *addContactRole == "" {
			addContactCmd.Usage()
			return errHelp
		}
		return cli.addContact(contact.NewContact{
			ID:        *addContactID,
			Name:      *addContactName,
			Role:      *addContactRole,
			AvatarURL: *addContactAvatar,
			Email:     *addContactEmail,
		})
	case "token":
		if err := tokenCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *tokenID == "" {
			tokenCmd.Usage()
			return errHelp
		}
		return cli.token(*tokenID)
	default:
		cli.printUsage()
		return errHelp
	}
}
