package command

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/term"

	"github.com/yndnr/dogpay-go/internal/core/domain"
	"github.com/yndnr/dogpay-go/internal/core/service"
	"github.com/yndnr/dogpay-go/pkg/token"
)

func passwordFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "email",
			Aliases: []string{"e"},
			Usage:   "Account email",
		},
		&cli.StringFlag{
			Name:    "password",
			Aliases: []string{"p"},
			Usage:   "Account password (prompted when omitted)",
			EnvVars: []string{"DOGPAY_PASSWORD"},
		},
		&cli.BoolFlag{
			Name:  "password-stdin",
			Usage: "Read the password from stdin",
		},
	}
}

// RegisterCommand returns the register command.
func RegisterCommand() *cli.Command {
	return &cli.Command{
		Name:  "register",
		Usage: "Create an account and log in",
		Flags: append(passwordFlags(), &cli.StringFlag{
			Name:    "name",
			Aliases: []string{"n"},
			Usage:   "Display name",
		}),
		Action: register,
	}
}

// LoginCommand returns the login command.
func LoginCommand() *cli.Command {
	return &cli.Command{
		Name:   "login",
		Usage:  "Log in with email and password",
		Flags:  passwordFlags(),
		Action: login,
	}
}

// LogoutCommand returns the logout command.
func LogoutCommand() *cli.Command {
	return &cli.Command{
		Name:   "logout",
		Usage:  "End the local session",
		Action: logout,
	}
}

// WhoamiCommand returns the whoami command.
func WhoamiCommand() *cli.Command {
	return &cli.Command{
		Name:   "whoami",
		Usage:  "Show the profile of the logged-in user",
		Action: whoami,
	}
}

// SessionCommand returns the session subcommand group.
func SessionCommand() *cli.Command {
	return &cli.Command{
		Name:    "session",
		Aliases: []string{"sess"},
		Usage:   "Inspect the local session",
		Subcommands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Show the stored session",
				Action: sessionShow,
			},
			{
				Name:   "refresh",
				Usage:  "Exchange the refresh token for a new credential pair",
				Action: sessionRefresh,
			},
			{
				Name:   "compact",
				Usage:  "Reclaim space in the session storage",
				Action: sessionCompact,
			},
		},
	}
}

func register(c *cli.Context) error {
	rt, err := GetRuntime(c)
	if err != nil {
		return err
	}

	password, err := readPassword(c)
	if err != nil {
		return err
	}
	user, err := rt.Lifecycle.Register(c.Context, domain.Registration{
		Email:    c.String("email"),
		Password: password,
		Name:     c.String("name"),
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout(c), "Registered and logged in as %s (%s)\n", user.Name, user.Email)
	return nil
}

func login(c *cli.Context) error {
	rt, err := GetRuntime(c)
	if err != nil {
		return err
	}

	password, err := readPassword(c)
	if err != nil {
		return err
	}
	user, err := rt.Lifecycle.Login(c.Context, domain.Credentials{
		Email:    c.String("email"),
		Password: password,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout(c), "Logged in as %s (%s)\n", user.Name, user.Email)
	return nil
}

func logout(c *cli.Context) error {
	rt, err := GetRuntime(c)
	if err != nil {
		return err
	}

	if err := rt.Lifecycle.Logout(c.Context); err != nil {
		return err
	}
	fmt.Fprintln(stdout(c), "Logged out")
	return nil
}

func whoami(c *cli.Context) error {
	rt, err := GetRuntime(c)
	if err != nil {
		return err
	}
	if _, err := rt.RequireSession(); err != nil {
		return err
	}

	user, err := rt.Conn.Identity.Me(c.Context)
	if err != nil {
		return err
	}
	return render(c, rt, user)
}

// sessionView is the printable form of the stored session. Tokens are
// masked.
type sessionView struct {
	Authenticated bool   `json:"authenticated"`
	View          string `json:"view"`
	UserID        string `json:"user_id"`
	Email         string `json:"email"`
	Name          string `json:"name"`
	AccessToken   string `json:"access_token"`
	RefreshToken  string `json:"refresh_token" table:"wide"`
	Fingerprint   string `json:"fingerprint" table:"wide"`
}

func newSessionView(sess domain.Session, view service.View) sessionView {
	v := sessionView{
		Authenticated: sess.Authenticated(),
		View:          string(view),
		AccessToken:   maskToken(sess.AccessToken),
		RefreshToken:  maskToken(sess.RefreshToken),
		Fingerprint:   token.Fingerprint(sess.AccessToken),
	}
	if sess.User != nil {
		v.UserID = sess.User.ID
		v.Email = sess.User.Email
		v.Name = sess.User.Name
	}
	return v
}

func maskToken(tok string) string {
	switch {
	case tok == "":
		return ""
	case len(tok) <= 12:
		return "***"
	default:
		return tok[:6] + "..." + tok[len(tok)-4:]
	}
}

func sessionShow(c *cli.Context) error {
	rt, err := GetRuntime(c)
	if err != nil {
		return err
	}
	return render(c, rt, newSessionView(rt.Store.Get(), rt.View()))
}

// sessionRefresh performs the refresh exchange on demand. A failed
// exchange ends the session the same way an unrecoverable 401 does.
func sessionRefresh(c *cli.Context) error {
	rt, err := GetRuntime(c)
	if err != nil {
		return err
	}
	sess, err := rt.RequireSession()
	if err != nil {
		return err
	}
	if sess.RefreshToken == "" {
		return domain.ErrNoSession.WithDetails("no refresh token stored")
	}

	res, err := rt.Conn.Identity.Refresh(c.Context, sess.RefreshToken)
	if err == nil {
		err = res.Validate()
	}
	if err == nil {
		err = rt.Store.SetAuth(c.Context, res.AccessToken, res.RefreshToken, res.User)
	}
	if err != nil {
		if lerr := rt.Lifecycle.Logout(c.Context); lerr != nil {
			rt.Logger.Warn("logout after failed refresh", "error", lerr)
		}
		return domain.ErrRefreshFailed.WithCause(err)
	}

	rt.Tracer.SetUser(res.User)
	fmt.Fprintln(stdout(c), "Session refreshed")
	return nil
}

type storageView struct {
	Cycles       int       `json:"gc_cycles"`
	LSMSize      uint64    `json:"lsm_bytes"`
	ValueLogSize uint64    `json:"vlog_bytes"`
	TotalSize    uint64    `json:"total_bytes"`
	LastGC       time.Time `json:"last_gc"`
}

// sessionCompact runs value log GC on demand. The background loop does
// the same every session.gc_interval.
func sessionCompact(c *cli.Context) error {
	rt, err := GetRuntime(c)
	if err != nil {
		return err
	}

	cycles, err := rt.Engine.GC(c.Context)
	if err != nil {
		return err
	}
	stats, err := rt.Engine.Stats(c.Context)
	if err != nil {
		return err
	}
	return render(c, rt, storageView{
		Cycles:       cycles,
		LSMSize:      stats.LSMSize,
		ValueLogSize: stats.ValueLogSize,
		TotalSize:    stats.TotalSize(),
		LastGC:       stats.LastGC,
	})
}

// readPassword takes the password from --password, stdin or an
// interactive prompt, in that order.
func readPassword(c *cli.Context) (string, error) {
	if p := c.String("password"); p != "" {
		return p, nil
	}

	if c.Bool("password-stdin") {
		in := c.App.Reader
		if in == nil {
			in = os.Stdin
		}
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && line == "" {
			return "", domain.ErrMissingField.WithDetails("password").WithCause(err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", domain.ErrMissingField.WithDetails("password")
	}
	fmt.Fprint(stderr(c), "Password: ")
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(stderr(c))
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(b), nil
}
