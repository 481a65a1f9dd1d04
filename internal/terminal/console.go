// Package terminal is the interactive menu front end. It reads choices
// line by line and drives a service.BookingService.
package terminal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cx-tal-miterani/flightdesk/internal/database"
	"github.com/cx-tal-miterani/flightdesk/internal/service"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

// Options tunes the console.
type Options struct {
	// PageSize is the number of flights shown per page.
	PageSize int
	// Terminal, when set and attached to a tty, is used to read passwords
	// without echo.
	Terminal *os.File
}

// Console contains the menu loops for both roles.
type Console struct {
	svc      service.BookingService
	in       *bufio.Reader
	out      io.Writer
	tty      *os.File
	pageSize int
	log      logrus.FieldLogger
}

// New creates a Console reading from in and writing to out.
func New(svc service.BookingService, in io.Reader, out io.Writer, opts Options, log logrus.FieldLogger) *Console {
	c := &Console{
		svc:      svc,
		in:       bufio.NewReader(in),
		out:      out,
		pageSize: opts.PageSize,
		log:      log,
	}
	if c.pageSize <= 0 {
		c.pageSize = 11
	}
	if opts.Terminal != nil && term.IsTerminal(int(opts.Terminal.Fd())) {
		c.tty = opts.Terminal
	}
	return c
}

// Run shows the welcome menu until the user exits or input ends.
func (c *Console) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		c.printf("\n== Flight Management System ==\n")
		c.printf("1. Log in\n2. Register\n0. Exit\n")
		choice, err := c.prompt("Choose: ")
		if err != nil {
			return c.endOfInput(err)
		}

		switch choice {
		case "1":
			err = c.login(ctx)
		case "2":
			err = c.register(ctx)
		case "0":
			c.printf("Goodbye.\n")
			return nil
		default:
			c.printf("Invalid option, try again.\n")
		}
		if err != nil {
			return c.endOfInput(err)
		}
	}
}

func (c *Console) login(ctx context.Context) error {
	username, err := c.prompt("Username: ")
	if err != nil {
		return err
	}
	password, err := c.readPassword("Password: ")
	if err != nil {
		return err
	}

	sess, err := c.svc.Login(ctx, username, password)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.printf("Wrong username or password.\n")
			return nil
		}
		c.report(err)
		return nil
	}

	c.printf("Welcome, %s.\n", username)
	if sess.IsAdmin() {
		return c.adminMenu(ctx, sess)
	}
	return c.userMenu(ctx, sess)
}

func (c *Console) register(ctx context.Context) error {
	username, err := c.prompt("Username: ")
	if err != nil {
		return err
	}
	password, ok, err := c.newPassword()
	if err != nil || !ok {
		return err
	}

	if err := c.svc.Register(ctx, username, password); err != nil {
		if errors.Is(err, database.ErrAlreadyExists) {
			c.printf("Username %s is already taken.\n", username)
			return nil
		}
		c.report(err)
		return nil
	}
	c.printf("Registered %s. You can log in now.\n", username)
	return nil
}

func (c *Console) changePassword(ctx context.Context, sess *service.Session) error {
	password, ok, err := c.newPassword()
	if err != nil || !ok {
		return err
	}
	if err := c.svc.ChangePassword(ctx, sess, password); err != nil {
		c.report(err)
		return nil
	}
	c.printf("Password changed.\n")
	return nil
}

// newPassword asks for a password twice. ok is false when the entries
// differ or are empty.
func (c *Console) newPassword() (string, bool, error) {
	password, err := c.readPassword("Password: ")
	if err != nil {
		return "", false, err
	}
	confirm, err := c.readPassword("Repeat password: ")
	if err != nil {
		return "", false, err
	}
	if password == "" {
		c.printf("Password must not be empty.\n")
		return "", false, nil
	}
	if password != confirm {
		c.printf("Passwords do not match.\n")
		return "", false, nil
	}
	return password, true, nil
}

// prompt prints label and returns the next input line without surrounding
// whitespace.
func (c *Console) prompt(label string) (string, error) {
	c.printf("%s", label)
	line, err := c.in.ReadString('\n')
	if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// readPassword reads without echo from the terminal. Input already held
// in the line buffer, such as pasted or piped lines, is consumed first so
// no keystrokes are lost or reordered.
func (c *Console) readPassword(label string) (string, error) {
	if c.tty == nil || c.in.Buffered() > 0 {
		return c.prompt(label)
	}
	c.printf("%s", label)
	secret, err := term.ReadPassword(int(c.tty.Fd()))
	c.printf("\n")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(secret)), nil
}

func (c *Console) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}

// report prints a short message for errors the user can act on and logs
// the rest.
func (c *Console) report(err error) {
	switch {
	case errors.Is(err, service.ErrInsufficientFunds):
		c.printf("Insufficient balance.\n")
	case errors.Is(err, service.ErrPermissionDenied):
		c.printf("You are not allowed to do that.\n")
	case errors.Is(err, service.ErrNoResults):
		c.printf("No matching flights.\n")
	case errors.Is(err, database.ErrNotFound):
		c.printf("Not found.\n")
	case errors.Is(err, database.ErrAlreadyExists):
		c.printf("Already exists.\n")
	case errors.Is(err, database.ErrInvalidInput):
		c.printf("Invalid input: %v\n", err)
	case errors.Is(err, database.ErrEmpty):
		c.printf("Nothing to show.\n")
	case errors.Is(err, database.ErrPersistFailed):
		c.log.WithError(err).Error("Write failed")
		c.printf("Could not save changes, nothing was modified.\n")
	default:
		c.log.WithError(err).Error("Operation failed")
		c.printf("Operation failed: %v\n", err)
	}
}

// endOfInput turns a closed input stream into a normal exit.
func (c *Console) endOfInput(err error) error {
	if errors.Is(err, io.EOF) {
		c.printf("\n")
		return nil
	}
	return err
}
