package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/credkeeper/internal/server/services"
)

// maxAttempts bounds re-prompts after a rejected answer.
const maxAttempts = 3

// retryable reports errors the operator can fix by typing again.
func retryable(err error) bool {
	var ve *services.ValidationError
	return errors.As(err, &ve) ||
		errors.Is(err, services.ErrIncorrectAnswer) ||
		errors.Is(err, services.ErrPasswordMismatch)
}

// attempt reads input and feeds it to step until step succeeds, fails for
// good, or maxAttempts is reached.
func (c *CLI) attempt(read func() (string, error), step func(string) error) error {
	var err error
	for i := 0; i < maxAttempts; i++ {
		var v string
		if v, err = read(); err != nil {
			return err
		}
		if err = step(v); err == nil || !retryable(err) {
			return err
		}
		fmt.Fprintln(c.out, Describe(err))
	}
	return err
}

func (c *CLI) text(prompt string) func() (string, error) {
	return func() (string, error) { return c.prompt.Text(prompt) }
}

func (c *CLI) secret(prompt string) func() (string, error) {
	return func() (string, error) { return c.prompt.Secret(prompt) }
}

func (c *CLI) recover(ctx context.Context) error {
	flow := c.app.Recovery()

	username, err := c.prompt.Text("Username")
	if err != nil {
		return err
	}
	if err := flow.SubmitUsername(ctx, username); err != nil {
		return err
	}

	fmt.Fprintf(c.out, "Secret question: %s\n", flow.MaskedQuestion())
	if err := c.attempt(c.secret("Answer"), func(v string) error {
		return flow.SubmitAnswer(ctx, v)
	}); err != nil {
		return err
	}

	if err := c.attempt(c.secret("New password"), func(v string) error {
		return flow.SubmitNewPassword(ctx, v)
	}); err != nil {
		return err
	}

	fmt.Fprintln(c.out, "Password changed.")
	return nil
}

func (c *CLI) firstAccess(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usageError("first-access <username>")
	}

	current, err := c.prompt.Secret("Current password")
	if err != nil {
		return err
	}
	res, err := c.app.Authenticator().Authenticate(ctx, args[0], current)
	if err != nil {
		return err
	}
	if !res.FirstAccessRequired {
		fmt.Fprintln(c.out, "First access already completed.")
		return nil
	}

	flow := c.app.FirstAccess(res.User.ID)
	if err := c.attempt(c.secret("New password"), flow.SetPassword); err != nil {
		return err
	}
	if err := c.attempt(c.secret("Confirm password"), flow.ConfirmPassword); err != nil {
		return err
	}

	var question string
	readChallenge := func() (string, error) {
		q, err := c.prompt.Text("Secret question")
		if err != nil {
			return "", err
		}
		question = q
		return c.prompt.Secret("Answer")
	}
	if err := c.attempt(readChallenge, func(answer string) error {
		return flow.SetSecretChallenge(ctx, question, answer)
	}); err != nil {
		return err
	}

	fmt.Fprintln(c.out, "First access completed.")
	return nil
}

func (c *CLI) reset(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usageError("reset <username>")
	}

	code, err := c.prompt.Text("Reset code")
	if err != nil {
		return err
	}

	registry := c.app.Registry()
	if err := c.attempt(c.secret("New password"), func(v string) error {
		return registry.ResetPasswordWithCode(ctx, args[0], v, code)
	}); err != nil {
		return err
	}

	fmt.Fprintln(c.out, "Password changed.")
	return nil
}

func (c *CLI) signup(ctx context.Context, args []string) error {
	if len(args) != 1 || strings.TrimSpace(args[0]) == "" {
		return usageError("signup <username>")
	}

	var req services.AccountRequest
	var err error
	if req.Name, err = c.prompt.Text("Full name"); err != nil {
		return err
	}
	if req.Email, err = c.prompt.Text("Email"); err != nil {
		return err
	}
	if req.Code, err = c.prompt.Text("Account code"); err != nil {
		return err
	}

	registry := c.app.Registry()
	err = c.attempt(c.secret("Password"), func(v string) error {
		req.Password = v
		_, err := registry.PrepareAccountWithCode(ctx, req)
		return err
	})
	if err != nil {
		return err
	}

	if err := c.attempt(c.secret("Confirm password"), func(v string) error {
		if v != req.Password {
			return services.ErrPasswordMismatch
		}
		return nil
	}); err != nil {
		return err
	}

	u, err := registry.CreateAccountWithCode(ctx, args[0], req)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Account %s created; complete first access before use.\n", u.Username)
	return nil
}
