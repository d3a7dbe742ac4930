// Command crawl runs a single crawl from the command line and writes the result as JSON or XLSX.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Harvey-AU/outline-crawler/internal/crawler"
	"github.com/Harvey-AU/outline-crawler/internal/export"
	"github.com/Harvey-AU/outline-crawler/internal/models"
	"github.com/briandowns/spinner"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type options struct {
	url         string
	class       string
	maxPages    int
	maxDuration time.Duration
	format      export.Format
	out         string
	concurrency int
	rateLimit   float64
	regionOnly  bool
	quiet       bool
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("crawl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	defaults := crawler.DefaultConfig()
	opts := &options{}
	var format string

	fs.StringVar(&opts.url, "url", "", "start URL (required)")
	fs.StringVar(&opts.class, "class", "", "class name identifying the content region (required)")
	fs.IntVar(&opts.maxPages, "max-pages", defaults.MaxPages, "maximum pages to fetch, 0 for no limit")
	fs.DurationVar(&opts.maxDuration, "max-duration", defaults.MaxDuration, "maximum crawl duration, 0 for no limit")
	fs.StringVar(&format, "format", "json", "output format: json or xlsx")
	fs.StringVar(&opts.out, "out", "", "output file (default stdout)")
	fs.IntVar(&opts.concurrency, "concurrency", defaults.ProbeConcurrency, "concurrent link status probes")
	fs.Float64Var(&opts.rateLimit, "rate", defaults.RateLimit, "page fetches per second, 0 for unpaced")
	fs.BoolVar(&opts.regionOnly, "region-only", false, "follow only links inside the content region")
	fs.BoolVar(&opts.quiet, "quiet", false, "hide the progress spinner")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if opts.url == "" || opts.class == "" {
		fs.Usage()
		return nil, errors.New("-url and -class are required")
	}

	f, err := export.ParseFormat(format)
	if err != nil {
		return nil, err
	}
	opts.format = f

	if opts.format == export.FormatXLSX && opts.out == "" {
		return nil, errors.New("-out is required for xlsx output")
	}

	return opts, nil
}

func run(ctx context.Context, opts *options, stdout, stderr io.Writer) error {
	job, err := models.NewCrawlJob(opts.url, opts.class)
	if err != nil {
		return err
	}

	cfg := crawler.DefaultConfig()
	cfg.ProbeConcurrency = opts.concurrency
	cfg.RateLimit = opts.rateLimit
	cfg.RegionLinksOnly = opts.regionOnly
	c := crawler.New(cfg)

	var s *spinner.Spinner
	if !opts.quiet {
		s = spinner.New(spinner.CharSets[9], 100*time.Millisecond, spinner.WithWriter(stderr))
		s.Suffix = " crawling " + job.SeedURL
		s.Start()
	}

	pages := 0
	summary, err := c.Crawl(ctx, job, crawler.CrawlOptions{
		MaxPages:    opts.maxPages,
		MaxDuration: opts.maxDuration,
		OnPage: func(rec models.PageRecord) {
			pages++
			if s != nil {
				s.Lock()
				s.Suffix = fmt.Sprintf(" %d pages, last %s", pages, rec.ArticleURL)
				s.Unlock()
			}
		},
	})
	if s != nil {
		s.Stop()
	}
	if err != nil {
		return err
	}

	if opts.out == "" {
		err = export.Write(stdout, summary.Result, opts.format)
	} else {
		var f *os.File
		f, err = os.Create(opts.out)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		err = writeAndClose(f, summary.Result, opts.format)
	}
	if err != nil {
		return err
	}

	if !opts.quiet {
		fmt.Fprintf(stderr, "%d pages, %d failed, stopped: %s (%s)\n",
			len(summary.Result.Pages), summary.PagesFailed, summary.StopReason, summary.Duration.Round(time.Millisecond))
	}
	return nil
}

// writeAndClose writes the result to wc and closes it, returning the close error too.
func writeAndClose(wc io.WriteCloser, result models.CrawlResult, format export.Format) error {
	if err := export.Write(wc, result, format); err != nil {
		_ = wc.Close()
		return err
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close output file: %w", err)
	}
	return nil
}

func setupLogging() {
	level, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil || os.Getenv("LOG_LEVEL") == "" {
		level = zerolog.WarnLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}

func main() {
	_ = godotenv.Load(".env.local", ".env")
	setupLogging()

	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, os.Stdout, os.Stderr); err != nil {
		log.Error().Err(err).Msg("Crawl failed")
		os.Exit(1)
	}
}
