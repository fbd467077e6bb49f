package main

import (
	"context"
	"fmt"

	"github.com/trezcool/darasa/core/auth"
)

// login prints the backend token; later commands take it from -token or <ENV>_API_TOKEN.
func (cli *commandLine) login(uname, pwd string) error {
	sess, err := cli.auth.Login(context.Background(), auth.LoginRequest{Username: uname, Password: pwd})
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "logged in as %s\n", sess.User.Username)
	fmt.Fprintf(cli.out, "%s_API_TOKEN=%s\n", cli.conf.Env, sess.Token)
	return nil
}
