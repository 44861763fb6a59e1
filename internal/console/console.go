// Package console implements the interactive side of the login flow on a
// terminal: prompting for client credentials, showing the authorization URL
// (and opening it in a browser when possible), and reading the pasted code.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/skratchdot/open-golang/open"
	"golang.org/x/term"

	"github.com/florianilch/whoop-auth/internal/app"
	"github.com/florianilch/whoop-auth/internal/credentials"
)

// Console talks to the user over a reader/writer pair, normally stdin and stderr.
type Console struct {
	in      *bufio.Reader
	out     io.Writer
	fd      int
	isTerm  func(fd int) bool
	readPwd func(fd int) ([]byte, error)
	openURL func(url string) error
}

// Compile-time checks for both interaction ports
var (
	_ credentials.Prompter = (*Console)(nil)
	_ app.Interactor       = (*Console)(nil)
)

// Option configures a Console.
type Option func(*Console)

// WithBrowser replaces the browser launcher (open-golang by default). Pass nil to never launch one.
func WithBrowser(openURL func(url string) error) Option {
	return func(c *Console) {
		c.openURL = openURL
	}
}

// New creates a Console reading from in and writing prompts to out.
// Secret input is hidden when in is a terminal.
func New(in io.Reader, out io.Writer, opts ...Option) *Console {
	c := &Console{
		in:      bufio.NewReader(in),
		out:     out,
		fd:      -1,
		isTerm:  term.IsTerminal,
		readPwd: term.ReadPassword,
		openURL: open.Run,
	}
	if f, ok := in.(*os.File); ok {
		c.fd = int(f.Fd())
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Stdio returns a Console on stdin, prompting on stderr so stdout stays clean for command output.
func Stdio(opts ...Option) *Console {
	return New(os.Stdin, os.Stderr, opts...)
}

// Interactive reports whether input comes from a terminal.
func (c *Console) Interactive() bool {
	return c.fd >= 0 && c.isTerm(c.fd)
}

// Prompt asks for a single value, returning defaultValue when the answer is blank.
func (c *Console) Prompt(ctx context.Context, label, defaultValue string, secret bool) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if defaultValue != "" {
		_, _ = fmt.Fprintf(c.out, "%s [%s]: ", label, defaultValue)
	} else {
		_, _ = fmt.Fprintf(c.out, "%s: ", label)
	}

	var answer string
	if secret && c.Interactive() {
		raw, err := c.readPwd(c.fd)
		_, _ = fmt.Fprintln(c.out)
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", label, err)
		}
		answer = string(raw)
	} else {
		line, err := c.readLine()
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", label, err)
		}
		answer = line
	}

	answer = strings.TrimSpace(answer)
	if answer == "" {
		return defaultValue, nil
	}
	return answer, nil
}

// ShowAuthorizationURL prints the URL and tries to open it in the default browser.
// A browser that cannot be launched is not an error: the URL is on screen.
func (c *Console) ShowAuthorizationURL(ctx context.Context, authURL string) error {
	if _, err := fmt.Fprintf(c.out, "Open this URL to authorize access to your WHOOP account:\n\n  %s\n\n", authURL); err != nil {
		return err
	}

	if c.openURL != nil {
		if err := c.openURL(authURL); err != nil {
			slog.DebugContext(ctx, "browser launch failed", "error", err)
		}
	}

	_, err := fmt.Fprintln(c.out, "After approving, you are redirected to your redirect URI with ?code=...&state=... appended.")
	return err
}

// ReadAuthorizationCode asks the user to paste the code or the whole redirect URL.
func (c *Console) ReadAuthorizationCode(ctx context.Context) (string, error) {
	return c.Prompt(ctx, "Paste the code (or the full redirect URL)", "", false)
}

func (c *Console) readLine() (string, error) {
	line, err := c.in.ReadString('\n')
	if errors.Is(err, io.EOF) && line != "" {
		return line, nil
	}
	return line, err
}
