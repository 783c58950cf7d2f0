package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/server"
	"github.com/dmitrijs2005/credkeeper/internal/server/securestore"
)

func (c *CLI) docs(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("docs put|update|get|list|rm|watch <collection>")
	}

	fs := newFlagSet("docs " + args[0])
	session := fs.Bool("session", false, "apply the short-lived envelope freshness window")
	if err := fs.Parse(args[1:]); err != nil {
		return usageError("%v", err)
	}
	if fs.NArg() < 1 {
		return usageError("docs %s <collection>", args[0])
	}

	store, err := server.OpenStore[json.RawMessage](ctx, c.app, fs.Arg(0), *session)
	if err != nil {
		return err
	}
	rest := fs.Args()[1:]

	switch args[0] {
	case "put":
		payload, err := c.payload(rest, 0)
		if err != nil {
			return err
		}
		id, err := store.Create(ctx, payload)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.out, id)
		return nil
	case "update":
		if len(rest) < 1 {
			return usageError("docs update <collection> <id> [json]")
		}
		payload, err := c.payload(rest, 1)
		if err != nil {
			return err
		}
		return store.Update(ctx, rest[0], payload)
	case "get":
		if len(rest) != 1 {
			return usageError("docs get <collection> <id>")
		}
		r, err := store.Get(ctx, rest[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(c.out, string(r.Payload))
		return nil
	case "rm":
		if len(rest) != 1 {
			return usageError("docs rm <collection> <id>")
		}
		return store.Remove(ctx, rest[0])
	case "list":
		records, err := store.List(ctx)
		if err != nil {
			return err
		}
		return c.printRecords(records)
	case "watch":
		return store.Subscribe(ctx, func(records []securestore.Record[json.RawMessage]) {
			fmt.Fprintf(c.out, "-- %d record(s)\n", len(records))
			_ = c.printRecords(records)
		})
	default:
		return usageError("unknown docs command %q", args[0])
	}
}

// payload takes the JSON document from args[i] or, when absent, from the
// prompt.
func (c *CLI) payload(args []string, i int) (json.RawMessage, error) {
	var raw string
	if len(args) > i {
		raw = strings.Join(args[i:], " ")
	} else {
		var err error
		if raw, err = c.prompt.Multiline("Document (JSON)"); err != nil {
			return nil, err
		}
	}
	if !json.Valid([]byte(raw)) {
		return nil, usageError("document is not valid JSON")
	}
	return json.RawMessage(raw), nil
}

func (c *CLI) printRecords(records []securestore.Record[json.RawMessage]) error {
	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\n", r.ID, r.CreatedAt.Format(time.RFC3339), string(r.Payload))
	}
	return w.Flush()
}
