// Command authctl performs administrative tasks against the accounts store:
// schema migrations and superuser creation.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/mentis-project/accounts/internal/auth/service"
	"github.com/mentis-project/accounts/internal/common/bootstrap"
	"github.com/mentis-project/accounts/internal/common/config"
	commonerrors "github.com/mentis-project/accounts/internal/common/errors"
	"github.com/mentis-project/accounts/internal/common/logger"
)

const usage = `usage:
  authctl migrate [up|version]
  authctl createsuperuser -email EMAIL [-first-name NAME] [-last-name NAME]`

var errUsage = errors.New(usage)

// readPassword is swapped out in tests to avoid touching the terminal.
var readPassword = term.ReadPassword

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin *os.File, stdout io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}

	log := logger.NewWithWriter(os.Stderr, "authctl", os.Getenv("LOG_LEVEL"))

	cfg, err := config.LoadAuthConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	switch args[0] {
	case "migrate":
		return migrate(ctx, log, cfg, args[1:], stdout)
	case "createsuperuser":
		return createSuperuser(ctx, log, cfg, args[1:], stdin, stdout)
	default:
		return errUsage
	}
}

func migrate(ctx context.Context, log *logger.Logger, cfg config.AuthConfig, args []string, stdout io.Writer) error {
	action := "up"
	if len(args) > 0 {
		action = args[0]
	}

	var (
		version int64
		err     error
	)
	switch action {
	case "up":
		version, err = bootstrap.Migrate(ctx, log, cfg)
	case "version":
		version, err = bootstrap.SchemaVersion(ctx, log, cfg)
	default:
		return errUsage
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "schema version: %d\n", version)
	return nil
}

func createSuperuser(ctx context.Context, log *logger.Logger, cfg config.AuthConfig, args []string, stdin *os.File, stdout io.Writer) error {
	fs := flag.NewFlagSet("createsuperuser", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	email := fs.String("email", "", "email address of the new account")
	firstName := fs.String("first-name", "", "first name")
	lastName := fs.String("last-name", "", "last name")
	if err := fs.Parse(args); err != nil || strings.TrimSpace(*email) == "" {
		return errUsage
	}

	prompt := newPrompter(stdin, stdout)
	password1, err := prompt.secret("Password: ")
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}
	password2, err := prompt.secret("Password (again): ")
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}

	app, err := bootstrap.NewAuthApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.Close()

	profile, err := app.Auth.CreateSuperuser(ctx, service.RegisterInput{
		Email:     *email,
		FirstName: *firstName,
		LastName:  *lastName,
		Password1: password1,
		Password2: password2,
	})
	if err != nil {
		return describe(err)
	}

	fmt.Fprintf(stdout, "Superuser %s created successfully.\n", profile.Email)
	return nil
}

// describe flattens field validation messages into one line for the
// terminal.
func describe(err error) error {
	de, ok := commonerrors.AsDomainError(err)
	if !ok || len(de.Details()) == 0 {
		return err
	}
	var parts []string
	for field, messages := range de.Details() {
		parts = append(parts, field+": "+strings.Join(messages, " "))
	}
	return fmt.Errorf("%s: %s", de.Message(), strings.Join(parts, "; "))
}

type prompter struct {
	in       *os.File
	out      io.Writer
	reader   *bufio.Reader
	terminal bool
}

func newPrompter(in *os.File, out io.Writer) *prompter {
	return &prompter{
		in:       in,
		out:      out,
		reader:   bufio.NewReader(in),
		terminal: term.IsTerminal(int(in.Fd())),
	}
}

// secret reads without echo on a terminal and falls back to a plain line
// read when input is piped.
func (p *prompter) secret(label string) (string, error) {
	fmt.Fprint(p.out, label)
	if p.terminal {
		pw, err := readPassword(int(p.in.Fd()))
		fmt.Fprintln(p.out)
		return string(pw), err
	}
	line, err := p.reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
