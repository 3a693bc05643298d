package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/rollcall/core"
	"github.com/trezcool/rollcall/core/user"
)

var errInvalidRole = errors.New("role must be one of student, teacher or admin")

// addUser creates or updates the account with email, activates it, and stores its profile.
func (cli *commandLine) addUser(email, name, role, pwd string) error {
	ctx := context.Background()
	role = core.CleanString(role, true /* lower */)
	if user.RolePriority(role) == 0 {
		return errInvalidRole
	}

	acc, err := cli.accounts.SaveAccount(ctx, email, pwd)
	if err != nil {
		return err
	}

	usr, err := cli.users.GetProfile(ctx, acc.ID)
	if err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			return err
		}
		usr = user.User{ID: acc.ID}
	}
	usr.Email = acc.Email
	usr.FullName = core.CleanString(name, false)
	usr.Role = role
	if err = cli.users.SetProfile(ctx, usr); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(cli.out, "%s saved as %s\n", acc.Email, role)
	return nil
}
