package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"VisaDecisions/internal/app"
	"VisaDecisions/internal/config"
	"VisaDecisions/internal/logging"
	"VisaDecisions/internal/week"
)

const usage = `usage: decisionsctl <command> [args]

commands:
  settings list
  settings get <key>
  settings set <key> <value>   (value "t" = now, "to" = 24h ago)
  settings unset <key>
  settings del <key>
  settings reset
  lookup <application-number>
  summary
  documents
  export
  resolve <filename> [YYYY-MM-DD]
`

func main() {
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if err := run(context.Background(), flag.Args(), os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errors.New(usage)
	}

	// resolve needs no store.
	if args[0] == "resolve" {
		return resolve(args[1:], out)
	}

	cfg := config.Load()
	application, err := app.New(ctx, cfg, logging.New("error"))
	if err != nil {
		return err
	}
	defer application.Close()

	switch args[0] {
	case "settings":
		return settings(ctx, application, args[1:], out)
	case "lookup":
		if len(args) != 2 {
			return errors.New("lookup needs an application number")
		}
		return lookup(ctx, application, args[1], out)
	case "summary":
		return summarize(ctx, application, out)
	case "documents":
		return documents(ctx, application, out)
	case "export":
		if err := application.Export(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, "exports written to", cfg.Paths.ExportDir)
		return nil
	default:
		return fmt.Errorf("unknown command %q\n%s", args[0], usage)
	}
}

func settings(ctx context.Context, a *app.Application, args []string, out io.Writer) error {
	svc := a.Settings()
	if len(args) == 0 {
		args = []string{"list"}
	}

	need := func(n int) error {
		if len(args) != n {
			return fmt.Errorf("settings %s expects %d argument(s)", args[0], n-1)
		}
		return nil
	}

	switch args[0] {
	case "list":
		all, err := svc.List(ctx)
		if err != nil {
			return err
		}
		for _, s := range all {
			fmt.Fprintf(out, "%s = %s\n", s.Key, display(s.Value))
		}
		return nil
	case "get":
		if err := need(2); err != nil {
			return err
		}
		v, err := svc.Get(ctx, args[1])
		if err != nil {
			return err
		}
		fmt.Fprintln(out, display(v))
		return nil
	case "set":
		if err := need(3); err != nil {
			return err
		}
		v, err := svc.Set(ctx, args[1], args[2])
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s = %s\n", args[1], v)
		return nil
	case "unset":
		if err := need(2); err != nil {
			return err
		}
		return svc.Unset(ctx, args[1])
	case "del":
		if err := need(2); err != nil {
			return err
		}
		return svc.Delete(ctx, args[1])
	case "reset":
		return svc.Reset(ctx)
	default:
		return fmt.Errorf("unknown settings command %q", args[0])
	}
}

func lookup(ctx context.Context, a *app.Application, number string, out io.Writer) error {
	records, err := a.Lookup(ctx, number)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintf(out, "no decision found for %s\n", number)
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "APPLICATION\tDECISION\tWEEK\tSOURCE")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.ApplicationNumber, r.Decision, r.WeekLabel, r.SourceFilename)
	}
	return tw.Flush()
}

func summarize(ctx context.Context, a *app.Application, out io.Writer) error {
	summaries, err := a.Summaries(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "WEEK\tAPPROVED\tREFUSED\tTOTAL\tREFUSED %\tROLLING\tCHANGE %")
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%.2f\t%.2f\t%.2f\n",
			s.WeekLabel, s.Approved, s.Refused, s.Total, s.RefusedPct, s.RollingMean, s.PctChange)
	}
	return tw.Flush()
}

func documents(ctx context.Context, a *app.Application, out io.Writer) error {
	docs, err := a.Documents(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tWEEK\tNEW\tADDED")
	for _, d := range docs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", d.Filename, d.WeekLabel, d.NewRecords, d.AddedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}

func resolve(args []string, out io.Writer) error {
	if len(args) == 0 || len(args) > 2 {
		return errors.New("resolve expects <filename> [YYYY-MM-DD]")
	}

	reference := time.Now()
	if len(args) == 2 {
		var err error
		if reference, err = time.Parse("2006-01-02", args[1]); err != nil {
			return fmt.Errorf("invalid reference date: %w", err)
		}
	}

	w, err := week.Resolve(args[0], reference)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s\t%s\t%s\n", w.Label, w.Start.Format("2006-01-02"), w.End.Format("2006-01-02"))
	return nil
}

func display(v *string) string {
	if v == nil {
		return "<null>"
	}
	return *v
}
