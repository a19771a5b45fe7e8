package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/madrasa/apps/api/echo"
)

func (cli *commandLine) token(id string) error {
	c, err := cli.contactSvc.Get(context.Background(), id)
	if err != nil {
		return err
	}
	token, err := echoapi.GenerateToken([]byte(cli.conf.SecretKey), echoapi.NewClaims(c, cli.conf))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	_, _ = fmt.Fprintln(cli.out, token)
	return nil
}
