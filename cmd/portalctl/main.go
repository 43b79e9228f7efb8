// AngelaMos | 2026
// main.go

package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"

	"golang.org/x/term"

	"github.com/angelamos/tutoring-portal/internal/client"
)

const usage = `usage: portalctl [flags] <command>

commands:
  register   create an account and sign in
  login      sign in with email and password
  whoami     show the signed-in user
  logout     end the session and clear local credentials
  users      list accounts (admin only)

flags:
`

type app struct {
	auth    *client.AuthContext
	session string
	in      *bufio.Reader
	out     io.Writer
	errOut  io.Writer
	// stdin is consulted only to hide password input on a terminal.
	stdin *os.File
}

func main() {
	flags := flag.NewFlagSet("portalctl", flag.ExitOnError)
	baseURL := flags.String("url", envOr("PORTAL_URL", "http://localhost:8080"), "portal API base URL")
	sessionPath := flags.String("session", defaultSessionPath(), "session file")
	verbose := flags.Bool("v", false, "verbose logging")
	flags.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flags.PrintDefaults()
	}

	_ = flags.Parse(os.Args[1:]) //nolint:errcheck // ExitOnError

	if flags.NArg() != 1 {
		flags.Usage()
		os.Exit(2)
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *baseURL, *sessionPath, flags.Arg(0)); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, baseURL, sessionPath, command string) error {
	a, err := newApp(logger, baseURL, sessionPath, os.Stdin, os.Stdout, os.Stderr)
	if err != nil {
		return err
	}
	return a.dispatch(ctx, command)
}

func newApp(
	logger *slog.Logger,
	baseURL, sessionPath string,
	stdin io.Reader,
	out, errOut io.Writer,
) (*app, error) {
	storage, err := client.NewFileStorage(sessionPath)
	if err != nil {
		return nil, err
	}

	a := &app{
		session: storage.Path(),
		in:      bufio.NewReader(stdin),
		out:     out,
		errOut:  errOut,
	}
	if f, ok := stdin.(*os.File); ok {
		a.stdin = f
	}

	a.auth, err = client.New(client.Options{
		BaseURL: baseURL,
		Storage: storage,
		Navigator: client.NavigatorFunc(func(route string) {
			if route == client.LoginRoute {
				fmt.Fprintln(a.errOut, "session is not valid, run: portalctl login")
			}
		}),
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}

	return a, nil
}

func (a *app) dispatch(ctx context.Context, command string) error {
	switch command {
	case "register":
		return a.register(ctx)
	case "login":
		return a.login(ctx)
	case "whoami":
		return a.whoami(ctx)
	case "logout":
		a.auth.Logout(ctx)
		fmt.Fprintf(a.out, "Logged out. Cleared %s.\n", a.session)
		return nil
	case "users":
		return a.users(ctx)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func (a *app) register(ctx context.Context) error {
	email, err := a.prompt("Email")
	if err != nil {
		return err
	}
	first, err := a.prompt("First name")
	if err != nil {
		return err
	}
	last, err := a.prompt("Last name")
	if err != nil {
		return err
	}
	password, err := a.password()
	if err != nil {
		return err
	}

	res, err := a.auth.Register(ctx, client.RegisterInput{
		Email:     email,
		Password:  password,
		FirstName: first,
		LastName:  last,
	})
	if err != nil {
		return err
	}

	return a.report(res)
}

func (a *app) login(ctx context.Context) error {
	email, err := a.prompt("Email")
	if err != nil {
		return err
	}
	password, err := a.password()
	if err != nil {
		return err
	}

	res, err := a.auth.Login(ctx, email, password)
	if err != nil {
		return err
	}

	return a.report(res)
}

func (a *app) whoami(ctx context.Context) error {
	if err := a.auth.Load(ctx); err != nil {
		return err
	}

	u, ok := a.auth.User()
	if !ok {
		return errors.New("not signed in")
	}

	fmt.Fprintf(a.out, "%s %s <%s>\nrole: %s\nlanguage: %s\n",
		u.FirstName, u.LastName, u.Email, u.Role, u.Language)
	return nil
}

func (a *app) users(ctx context.Context) error {
	var resp struct {
		Data []client.User `json:"data"`
	}
	if err := a.auth.Get(ctx, "/api/admin/users", &resp); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tEMAIL\tNAME\tROLE")
	for _, u := range resp.Data {
		fmt.Fprintf(tw, "%s\t%s\t%s %s\t%s\n", u.ID, u.Email, u.FirstName, u.LastName, u.Role)
	}
	return tw.Flush()
}

func (a *app) report(res *client.Result) error {
	if !res.Success {
		for _, fe := range res.Errors {
			fmt.Fprintf(a.errOut, "  %s: %s\n", fe.Field, fe.Message)
		}
		return errors.New(res.Message)
	}

	if res.User == nil {
		fmt.Fprintln(a.out, res.Message)
		return nil
	}
	fmt.Fprintf(a.out, "%s Signed in as %s.\n", res.Message, res.User.Email)
	return nil
}

func (a *app) prompt(label string) (string, error) {
	fmt.Fprintf(a.out, "%s: ", label)
	line, err := a.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (a *app) password() (string, error) {
	if a.stdin == nil || !term.IsTerminal(int(a.stdin.Fd())) {
		return a.prompt("Password")
	}
	fd := int(a.stdin.Fd())

	fmt.Fprint(a.out, "Password: ")
	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(a.out)
	if err != nil {
		return "", err
	}
	return string(pw), nil
}

func defaultSessionPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".portalctl-session.json"
	}
	return filepath.Join(dir, "portalctl", "session.json")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
