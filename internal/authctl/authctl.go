// Package authctl implements the operator commands: applying migrations,
// provisioning a user and seeding the demo accounts.
package authctl

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dmitrijs2005/calauth/internal/common"
	"github.com/dmitrijs2005/calauth/internal/server/models"
	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

type Migrator interface {
	RunMigrations(ctx context.Context, db *sql.DB) error
}

type Directory interface {
	CreateUser(ctx context.Context, email, password string, verified bool, roles ...string) (*models.User, error)
	SeedDemo(ctx context.Context) ([]*models.User, error)
}

type App struct {
	db        *sql.DB
	migrator  Migrator
	directory Directory
	in        *bufio.Reader
	out       io.Writer
}

func NewApp(db *sql.DB, migrator Migrator, directory Directory, in io.Reader, out io.Writer) *App {
	return &App{db: db, migrator: migrator, directory: directory, in: bufio.NewReader(in), out: out}
}

const usage = `usage: authctl <command> [flags]

commands:
  migrate                                   apply database migrations
  useradd -email addr [-admin] [-verified]  create a user, password is prompted
  seed-demo                                 create the demo accounts`

// Run executes the command named by args[0].
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprintln(a.out, usage)
		return errors.New("no command given")
	}

	switch args[0] {
	case "migrate":
		return a.migrate(ctx)
	case "useradd":
		return a.userAdd(ctx, args[1:])
	case "seed-demo":
		return a.seedDemo(ctx)
	case "help", "-h", "--help":
		fmt.Fprintln(a.out, usage)
		return nil
	default:
		fmt.Fprintln(a.out, usage)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func (a *App) migrate(ctx context.Context) error {
	if err := a.migrator.RunMigrations(ctx, a.db); err != nil {
		return fmt.Errorf("migration error: %w", err)
	}
	fmt.Fprintln(a.out, "migrations applied")
	return nil
}

func (a *App) userAdd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("useradd", flag.ContinueOnError)
	fs.SetOutput(a.out)
	email := fs.String("email", "", "email address")
	admin := fs.Bool("admin", false, "grant the admin role")
	verified := fs.Bool("verified", false, "mark the email as verified")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *email == "" {
		line, err := a.prompt("Email")
		if err != nil {
			return err
		}
		*email = line
	}

	password, err := a.password("Password: ")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	confirm, err := a.password("Repeat password: ")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(confirm)

	if string(password) != string(confirm) {
		return errors.New("passwords do not match")
	}

	var roles []string
	if *admin {
		roles = append(roles, common.RoleAdmin)
	}

	user, err := a.directory.CreateUser(ctx, *email, string(password), *verified, roles...)
	switch {
	case errors.Is(err, common.ErrValidation) && err != common.ErrValidation:
		return err
	case errors.Is(err, common.ErrValidation):
		return errors.New("invalid email or password too weak (8+ characters, a letter and a digit)")
	case errors.Is(err, common.ErrorAlreadyExists):
		return fmt.Errorf("user %s already exists", *email)
	case err != nil:
		return err
	}

	fmt.Fprintf(a.out, "created user %s (%s)\n", user.Email, user.ID)
	return nil
}

func (a *App) seedDemo(ctx context.Context) error {
	created, err := a.directory.SeedDemo(ctx)
	for _, u := range created {
		fmt.Fprintf(a.out, "created %s\n", u.Email)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%d demo accounts created\n", len(created))
	return nil
}

func (a *App) prompt(label string) (string, error) {
	fmt.Fprint(a.out, label+": ")
	line, err := a.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && len(line) > 0) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (a *App) password(label string) ([]byte, error) {
	fmt.Fprint(a.out, label)
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(a.out)
	if err != nil {
		return nil, err
	}
	return pw, nil
}
