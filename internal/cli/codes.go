package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/server/services"
)

func (c *CLI) codes(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("codes issue|list|revoke|sweep")
	}

	fs := newFlagSet("codes " + args[0])
	token := fs.String("token", "", "admin token")

	switch args[0] {
	case "issue":
		email := fs.String("email", "", "restrict the code to this email")
		hours := fs.Int("hours", c.app.Config().ResetCodeValidity, "validity in hours")
		company := fs.String("company", "", "company id for account creation")
		sector := fs.String("sector", "", "sector id for account creation")
		level := fs.String("level", "", "user level for account creation")
		if err := fs.Parse(args[1:]); err != nil {
			return usageError("%v", err)
		}
		admin, err := c.adminID(*token)
		if err != nil {
			return err
		}
		return c.issue(ctx, services.IssueRequest{
			AdminID:       admin,
			TargetEmail:   optional(*email),
			ValidityHours: *hours,
			CompanyID:     optional(*company),
			SectorID:      optional(*sector),
			UserLevel:     strings.TrimSpace(*level),
		})

	case "list", "sweep", "revoke":
		if err := fs.Parse(args[1:]); err != nil {
			return usageError("%v", err)
		}
		if _, err := c.adminID(*token); err != nil {
			return err
		}
		switch args[0] {
		case "list":
			return c.listCodes(ctx)
		case "sweep":
			n, err := c.app.Registry().SweepExpired(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "%d expired code(s) removed\n", n)
			return nil
		default:
			if fs.NArg() != 1 {
				return usageError("codes revoke <code-id>")
			}
			if err := c.app.Registry().Revoke(ctx, fs.Arg(0)); err != nil {
				return err
			}
			fmt.Fprintln(c.out, "revoked")
			return nil
		}

	default:
		return usageError("unknown codes command %q", args[0])
	}
}

func (c *CLI) issue(ctx context.Context, req services.IssueRequest) error {
	rc, err := c.app.Registry().Issue(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "code:    %s\n", rc.Code)
	fmt.Fprintf(c.out, "id:      %s\n", rc.ID)
	fmt.Fprintf(c.out, "expires: %s\n", rc.ExpiresAt.Format(time.RFC3339))
	if rc.TargetEmail != nil {
		fmt.Fprintf(c.out, "for:     %s\n", *rc.TargetEmail)
	}
	return nil
}

func (c *CLI) listCodes(ctx context.Context) error {
	codes, err := c.app.Registry().List(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCODE\tFOR\tLEVEL\tSTATUS")
	for _, ac := range codes {
		status := fmt.Sprintf("%dm left", ac.MinutesRemaining)
		if ac.Expired {
			status = "expired"
		}
		target := "any"
		if ac.TargetEmail != nil {
			target = *ac.TargetEmail
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", ac.ID, ac.Code, target, ac.UserLevel, status)
	}
	return w.Flush()
}

func (c *CLI) audit(ctx context.Context, args []string) error {
	fs := newFlagSet("users audit")
	token := fs.String("token", "", "admin token")
	if err := fs.Parse(args); err != nil {
		return usageError("%v", err)
	}
	if _, err := c.adminID(*token); err != nil {
		return err
	}

	report, err := services.AuditUsers(ctx, c.app.Users())
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "users: %d, migrated: %d\n", report.Total, report.Migrated)
	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	for _, f := range report.Findings {
		tags := make([]string, 0, len(f.Tags))
		for _, t := range f.Tags {
			tags = append(tags, string(t))
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", f.UserID, f.Username, strings.Join(tags, ","))
	}
	return w.Flush()
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
