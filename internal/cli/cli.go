// Package cli implements the credkeeper operator command line: reset code
// administration, the interactive recovery and first-access flows, the
// migration audit, encrypted document access and the maintenance daemon.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/server"
	"github.com/dmitrijs2005/credkeeper/internal/server/config"
	"github.com/dmitrijs2005/credkeeper/internal/server/services"
)

const usage = `usage: credkeeper [global flags] <command> [args]

commands:
  codes issue  [-email E] [-hours N] [-company C] [-sector S] [-level L]
  codes list
  codes revoke <code-id>
  codes sweep
  users audit
  token <admin-id>
  signup <username>
  reset <username>
  recover
  first-access <username>
  docs put|update|get|list|rm|watch [-session] <collection> [id] [json]
  serve

Admin commands need -token or CREDKEEPER_ADMIN_TOKEN.
`

// ErrUsage reports malformed command lines.
var ErrUsage = errors.New("invalid usage")

func usageError(format string, a ...any) error {
	return fmt.Errorf("%w: %s", ErrUsage, fmt.Sprintf(format, a...))
}

// CLI runs commands against one server.App.
type CLI struct {
	app    *server.App
	prompt *Prompter
	out    io.Writer
	getenv func(string) string
}

func New(app *server.App, in io.Reader, out io.Writer) *CLI {
	return &CLI{app: app, prompt: NewPrompter(in, out), out: out, getenv: os.Getenv}
}

// SplitArgs separates global configuration flags from the command and its
// arguments. Global flags must come before the command.
func SplitArgs(args []string) (global, rest []string) {
	known := make(map[string]struct{})
	for _, f := range config.FlagNames() {
		known[f] = struct{}{}
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "-") {
			return global, args[i:]
		}
		global = append(global, arg)

		name, _, hasValue := strings.Cut(arg, "=")
		if _, ok := known[name]; ok && !hasValue && config.TakesValue(name) && i+1 < len(args) {
			global = append(global, args[i+1])
			i++
		}
	}
	return global, nil
}

func (c *CLI) Execute(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(c.out, usage)
		return usageError("missing command")
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "codes":
		return c.codes(ctx, rest)
	case "users":
		if len(rest) == 0 || rest[0] != "audit" {
			return usageError("users audit")
		}
		return c.audit(ctx, rest[1:])
	case "token":
		return c.token(rest)
	case "signup":
		return c.signup(ctx, rest)
	case "reset":
		return c.reset(ctx, rest)
	case "recover":
		return c.recover(ctx)
	case "first-access":
		return c.firstAccess(ctx, rest)
	case "docs":
		return c.docs(ctx, rest)
	case "serve":
		return c.app.Serve(ctx)
	case "help", "-h", "--help":
		fmt.Fprint(c.out, usage)
		return nil
	default:
		return usageError("unknown command %q", cmd)
	}
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

// adminID resolves the admin behind -token or the environment.
func (c *CLI) adminID(token string) (string, error) {
	if token == "" {
		token = c.getenv(common.AdminTokenEnvName)
	}
	if token == "" {
		return "", fmt.Errorf("%w: admin token required", common.ErrorUnauthorized)
	}
	return c.app.AdminSession().AdminID(token)
}

func (c *CLI) token(args []string) error {
	if len(args) != 1 || strings.TrimSpace(args[0]) == "" {
		return usageError("token <admin-id>")
	}
	tok, err := c.app.AdminSession().Issue(strings.TrimSpace(args[0]), c.app.Config().AdminTokenValidity)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, tok)
	return nil
}

// Describe turns service errors into operator-facing messages.
func Describe(err error) string {
	var ve *services.ValidationError
	switch {
	case errors.As(err, &ve):
		return ve.Message
	case errors.Is(err, services.ErrCodeNotFound):
		return "code not found"
	case errors.Is(err, services.ErrCodeExpired):
		return "code expired"
	case errors.Is(err, services.ErrCodeAlreadyUsed):
		return "code already used"
	case errors.Is(err, services.ErrCodeWrongOwner):
		return "code was issued for another email"
	case errors.Is(err, services.ErrCodeScopeIncomplete):
		return "code has no company or sector; ask for a new one"
	case errors.Is(err, services.ErrUserNotFound):
		return "user not found"
	case errors.Is(err, services.ErrNoChallengeConfigured):
		return "no secret question configured; ask an administrator for a reset code"
	case errors.Is(err, services.ErrIncorrectAnswer):
		return "incorrect answer"
	case errors.Is(err, services.ErrPasswordMismatch):
		return "passwords do not match"
	case errors.Is(err, common.ErrTokenExpired):
		return "admin token expired"
	case errors.Is(err, common.ErrInvalidToken), errors.Is(err, common.ErrForbidden):
		return "invalid admin token"
	case errors.Is(err, common.ErrorUnauthorized):
		return "not authorized"
	case errors.Is(err, common.ErrStore):
		return "storage unavailable, try again"
	default:
		return err.Error()
	}
}
