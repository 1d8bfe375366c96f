// Package admin implements the memberkeeper-admin commands: creating
// administrators and changing user roles directly against the user store.
package admin

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/memberkeeper/internal/common"
	"github.com/dmitrijs2005/memberkeeper/internal/flagx"
	"github.com/dmitrijs2005/memberkeeper/internal/server/models"
)

// ErrUsage is returned for an unknown command or missing arguments.
var ErrUsage = errors.New("usage: memberkeeper-admin create-admin -email <email> [-name <name>] | set-role -id <uuid> -role <user|admin>")

// UserAdmin is the part of the user service the commands use.
type UserAdmin interface {
	CreateUser(ctx context.Context, email, password string, profile models.ProfileFields, role models.Role) (*models.User, error)
	SetRole(ctx context.Context, userID string, role models.Role) error
}

type Runner struct {
	users  UserAdmin
	reader *bufio.Reader
	out    io.Writer
}

func NewRunner(users UserAdmin, in io.Reader, out io.Writer) *Runner {
	return &Runner{users: users, reader: bufio.NewReader(in), out: out}
}

// Run dispatches args[0] as a command. Flags owned by the server config
// layer may be mixed in and are ignored here.
func (r *Runner) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return ErrUsage
	}

	switch args[0] {
	case "create-admin":
		return r.createAdmin(ctx, args[1:])
	case "set-role":
		return r.setRole(ctx, args[1:])
	default:
		return fmt.Errorf("%w: unknown command %q", ErrUsage, args[0])
	}
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func (r *Runner) createAdmin(ctx context.Context, args []string) error {
	fs := newFlagSet("create-admin")
	email := fs.String("email", "", "administrator email")
	name := fs.String("name", "", "display name")
	if err := fs.Parse(flagx.FilterArgs(args, []string{"-email", "-name"})); err != nil {
		return err
	}

	if *email == "" {
		v, err := GetSimpleText(r.reader, "Email", r.out)
		if err != nil {
			return err
		}
		*email = v
	}
	if strings.TrimSpace(*email) == "" {
		return fmt.Errorf("%w: email is required", ErrUsage)
	}

	password, err := GetPassword(r.out, "Enter password: ")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	confirm, err := GetPassword(r.out, "Repeat password: ")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(confirm)

	if !bytes.Equal(password, confirm) {
		return errors.New("passwords do not match")
	}

	u, err := r.users.CreateUser(ctx, *email, string(password), models.ProfileFields{Name: *name}, models.RoleAdmin)
	if err != nil {
		return err
	}

	fmt.Fprintf(r.out, "created admin %s (%s)\n", u.Email, u.ID)
	return nil
}

func (r *Runner) setRole(ctx context.Context, args []string) error {
	fs := newFlagSet("set-role")
	id := fs.String("id", "", "user id")
	roleName := fs.String("role", "", "new role")
	if err := fs.Parse(flagx.FilterArgs(args, []string{"-id", "-role"})); err != nil {
		return err
	}
	if *id == "" || *roleName == "" {
		return fmt.Errorf("%w: -id and -role are required", ErrUsage)
	}

	role, err := models.ParseRole(*roleName)
	if err != nil {
		return err
	}

	if err := r.users.SetRole(ctx, *id, role); err != nil {
		return err
	}

	fmt.Fprintf(r.out, "user %s is now %s\n", *id, role)
	return nil
}
