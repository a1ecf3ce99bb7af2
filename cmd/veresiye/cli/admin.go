package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/veresiye/defter/internal/auth"
)

// AdminPasswordEnv supplies the password when -password is omitted.
const AdminPasswordEnv = "VERESIYE_ADMIN_PASSWORD"

// AdminCreator creates staff accounts.
type AdminCreator interface {
	CreateAdmin(ctx context.Context, in auth.NewAdmin) (auth.User, error)
}

// CreateAdmin parses create-admin flags and creates the account.
func CreateAdmin(ctx context.Context, creator AdminCreator, args []string, out io.Writer, getenv func(string) string) error {
	fs := flag.NewFlagSet("create-admin", flag.ContinueOnError)
	fs.SetOutput(out)
	username := fs.String("username", "", "admin username")
	email := fs.String("email", "", "admin email (optional)")
	password := fs.String("password", "", "admin password, defaults to $"+AdminPasswordEnv)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*username) == "" {
		return errors.New("create-admin: -username is required")
	}
	pw := *password
	if pw == "" && getenv != nil {
		pw = getenv(AdminPasswordEnv)
	}
	if pw == "" {
		return fmt.Errorf("create-admin: -password or $%s is required", AdminPasswordEnv)
	}
	in := auth.NewAdmin{Username: strings.TrimSpace(*username), Password: pw}
	if e := strings.TrimSpace(*email); e != "" {
		in.Email = &e
	}
	user, err := creator.CreateAdmin(ctx, in)
	if err != nil {
		return fmt.Errorf("create-admin: %w", err)
	}
	_, err = fmt.Fprintf(out, "created admin %s (id %d)\n", user.Username, user.ID)
	return err
}
