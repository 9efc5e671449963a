// Command decide analyses one payoff table and prints the report.
//
//	decide -file payoffs.xlsx -format markdown
//	pbpaste | decide -sense cost -alpha 0.4
//	decide -url https://example.com/sheet/export?format=csv -criterion emv
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Harry10012003/decision-support-tool/internal/decision"
	"github.com/Harry10012003/decision-support-tool/internal/fetch"
	"github.com/Harry10012003/decision-support-tool/internal/logger"
	"github.com/Harry10012003/decision-support-tool/internal/models"
	"github.com/Harry10012003/decision-support-tool/internal/parser"
	"github.com/Harry10012003/decision-support-tool/internal/report"
)

var errUsage = errors.New("usage")

type options struct {
	file      string
	url       string
	sense     string
	alpha     float64
	format    string
	criterion string
	example   bool
	timeout   time.Duration
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Init("warn", "text")

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "decide: %v\n", err)
		}
		os.Exit(1)
	}
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("decide", flag.ContinueOnError)
	fs.SetOutput(stderr)

	opts := &options{}
	fs.StringVar(&opts.file, "file", "", "Read the table from a .xlsx, .csv or text file")
	fs.StringVar(&opts.url, "url", "", "Download the table from a published CSV or XLSX export")
	fs.StringVar(&opts.sense, "sense", "maximize", "Objective: maximize (profit) or minimize (cost)")
	fs.Float64Var(&opts.alpha, "alpha", decision.DefaultAlpha, "Hurwicz coefficient of realism, 0..1")
	fs.StringVar(&opts.format, "format", "text", "Output format: text, markdown, html, csv or json")
	fs.StringVar(&opts.criterion, "criterion", "", "Print only this criterion as a text table (e.g. emv, hurwicz, minimax_regret); cannot be combined with -format")
	fs.BoolVar(&opts.example, "example", false, "Analyse the built-in example table")
	fs.DurationVar(&opts.timeout, "timeout", 15*time.Second, "Timeout for -url downloads")

	if err := fs.Parse(args); err != nil {
		return nil, errUsage
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "unexpected arguments: %v\n", fs.Args())
		fs.Usage()
		return nil, errUsage
	}
	formatSet := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "format" {
			formatSet = true
		}
	})
	if formatSet && opts.criterion != "" {
		return nil, errors.New("-criterion prints a text table and cannot be combined with -format")
	}

	sources := 0
	for _, set := range []bool{opts.file != "", opts.url != "", opts.example} {
		if set {
			sources++
		}
	}
	if sources > 1 {
		return nil, errors.New("-file, -url and -example are mutually exclusive")
	}
	return opts, nil
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	sense, err := models.ParseSense(opts.sense)
	if err != nil {
		return err
	}
	format, err := report.ParseFormat(opts.format)
	if err != nil {
		return err
	}
	var criterion decision.Criterion
	if opts.criterion != "" {
		if criterion, err = decision.ParseCriterion(opts.criterion); err != nil {
			return err
		}
	}

	table, err := loadTable(ctx, opts, stdin)
	if err != nil {
		return err
	}

	ev, err := decision.Evaluate(decision.Request{
		Matrix:        &table.Matrix,
		Probabilities: table.Probabilities,
		Sense:         sense,
		Alpha:         opts.alpha,
	})
	if err != nil {
		return err
	}
	for _, w := range ev.Warnings {
		fmt.Fprintf(stderr, "warning: %s\n", w)
	}

	if criterion != "" {
		_, err = io.WriteString(stdout, report.CriterionSummary(ev, criterion))
		return err
	}
	out, err := report.Render(ev, format)
	if err != nil {
		return err
	}
	if _, err = stdout.Write(out); err != nil {
		return err
	}
	if len(out) > 0 && out[len(out)-1] != '\n' {
		_, err = io.WriteString(stdout, "\n")
	}
	return err
}

func loadTable(ctx context.Context, opts *options, stdin io.Reader) (*parser.Table, error) {
	switch {
	case opts.example:
		return parser.ParseText(parser.ExampleTable())

	case opts.file != "":
		return parser.ReadFile(opts.file)

	case opts.url != "":
		// the link comes from the person running the command, who may read their own network
		client := fetch.NewClient(fetch.ClientConfig{Timeout: opts.timeout, AllowPrivateNetworks: true})
		doc, err := client.Fetch(ctx, opts.url)
		if err != nil {
			return nil, err
		}
		table, err := parser.ParseDocument(doc.Name, bytes.NewReader(doc.Data))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", doc.Name, err)
		}
		return table, nil

	default:
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return parser.ParseText(string(data))
	}
}
