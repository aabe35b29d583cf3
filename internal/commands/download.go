package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/emcshop-dev/emcshop/internal/buildinfo"
	"github.com/emcshop-dev/emcshop/internal/config"
	"github.com/emcshop-dev/emcshop/internal/emcweb"
	"github.com/emcshop-dev/emcshop/internal/gitops"
	"github.com/emcshop-dev/emcshop/internal/history"
	"github.com/emcshop-dev/emcshop/internal/journal"
	"github.com/emcshop-dev/emcshop/internal/logger"
	"github.com/emcshop-dev/emcshop/internal/metrics"
	"github.com/emcshop-dev/emcshop/internal/model"
	"github.com/emcshop-dev/emcshop/internal/runlog"
	"github.com/emcshop-dev/emcshop/internal/scribe"
)

type downloadOptions struct {
	repo        string
	startPage   int
	startDate   string
	stopPage    int
	stopDate    string
	sinceLast   bool
	sinceLastOK bool // --since-last was given explicitly
	workers     int
	password    string
	metricsAddr string
}

func newDownloadCommand() *cobra.Command {
	var opts downloadOptions

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download rupee transactions into the history repo",
		Long: `Download rupee transactions from the website, newest first, and add
them to the monthly history files. By default the download stops at the
newest transaction already stored; use --since-last=false for a full download.

The password is read from --password or the ` + config.PasswordEnv + ` environment variable.
Press Ctrl-C to stop early; transactions read so far are kept.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.sinceLastOK = cmd.Flags().Changed("since-last")
			if opts.password == "" {
				opts.password = os.Getenv(config.PasswordEnv)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return runDownload(ctx, cmd.OutOrStdout(), opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.repo, "repo", ".", "history repo directory")
	f.IntVar(&opts.startPage, "start-page", 1, "page to start at")
	f.StringVar(&opts.startDate, "start-date", "", "skip transactions newer than this date")
	f.IntVar(&opts.stopPage, "stop-page", 0, "last page to download")
	f.StringVar(&opts.stopDate, "stop-date", "", "stop at transactions this old")
	f.BoolVar(&opts.sinceLast, "since-last", true, "stop at the newest stored transaction (default from config)")
	f.IntVar(&opts.workers, "workers", 0, "concurrent page downloads (default from config)")
	f.StringVar(&opts.password, "password", "", "website password")
	f.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while downloading")
	cmd.MarkFlagsMutuallyExclusive("start-page", "start-date")
	cmd.MarkFlagsMutuallyExclusive("stop-page", "stop-date")

	return cmd
}

// downloadResult is what one run read and stored.
type downloadResult struct {
	records []model.Record
	stats   history.Stats
	start   int
	balance *int
	added   int
}

func runDownload(ctx context.Context, out io.Writer, opts downloadOptions) error {
	r, err := openRepo(opts.repo)
	if err != nil {
		return err
	}
	if opts.password == "" {
		return fmt.Errorf("no password: use --password or set %s", config.PasswordEnv)
	}

	runID := uuid.New()
	log := logger.FromContext(ctx).With().Str("run_id", runID.String()).Logger()
	store := journal.NewService(r.historyDir())

	hcfg, err := readerConfig(r, store, opts, log)
	if err != nil {
		return err
	}

	rec := metrics.New()
	hcfg.Observer = rec
	if opts.metricsAddr != "" {
		shutdown, err := serveMetrics(opts.metricsAddr, rec, log)
		if err != nil {
			return err
		}
		defer shutdown()
	}

	src, err := emcweb.New(emcweb.Options{
		BaseURL:       r.cfg.Server.BaseURL,
		Username:      r.cfg.Profile.Username,
		Password:      opts.password,
		Timeout:       r.cfg.Server.Timeout,
		RatePerSecond: r.cfg.Server.RatePerSecond,
		Burst:         r.cfg.Server.Burst,
		UserAgent:     buildinfo.UserAgent(),
		Parser:        &emcweb.JSONParser{Scribes: scribe.DefaultRegistry(), Logger: log},
		Logger:        log,
	})
	if err != nil {
		return err
	}

	res, runErr := download(ctx, src, hcfg, rec)
	status := runlog.StatusOK
	switch {
	case runErr != nil:
		status = runlog.StatusFailed
	case ctx.Err() != nil:
		status = runlog.StatusInterrupted
		log.Warn().Msg("download interrupted, keeping what was read")
	}

	if len(res.records) > 0 {
		res.added, err = store.Append(res.records)
		if err != nil {
			return errors.Join(runErr, fmt.Errorf("saving history: %w", err))
		}
		for _, problem := range journal.ValidateRecords(res.records) {
			log.Warn().Str("fingerprint", problem.Fingerprint).Msg(problem.Error())
		}
	}

	entry := runlog.Entry{
		Timestamp:  time.Now().UTC(),
		RunID:      runID,
		StartPage:  res.start,
		Pages:      res.stats.PagesRead,
		Records:    len(res.records),
		Duplicates: res.stats.Duplicates,
		Balance:    res.balance,
		Status:     status,
	}
	if len(res.records) > 0 {
		entry.Newest = res.records[0].Time
	}
	if runErr != nil {
		entry.Error = runErr.Error()
	}
	if err := runlog.Append(r.logDir(), []runlog.Entry{entry}); err != nil {
		return errors.Join(runErr, fmt.Errorf("writing run log: %w", err))
	}

	if runErr != nil {
		return runErr
	}

	if res.added > 0 {
		if err := commitHistory(ctx, r, res.added); err != nil {
			log.Warn().Err(err).Msg("could not commit history")
		}
	}

	fmt.Fprintf(out, "Read %d transactions from %d pages (%d new, %d duplicates skipped)\n",
		len(res.records), res.stats.PagesRead, res.added, res.stats.Duplicates)
	if res.balance != nil {
		fmt.Fprintf(out, "Balance: %d rupees\n", *res.balance)
	}
	return nil
}

// readerConfig turns the command line and repo state into a reader config.
func readerConfig(r *repo, store *journal.Service, opts downloadOptions, log zerolog.Logger) (history.Config, error) {
	cfg := history.Config{
		Start:   history.StartPage(opts.startPage),
		Workers: r.cfg.Download.Workers,
		Logger:  log,
	}
	if opts.workers > 0 {
		cfg.Workers = opts.workers
	}

	var startDate time.Time
	if opts.startDate != "" {
		d, err := parseDate(opts.startDate)
		if err != nil {
			return cfg, err
		}
		startDate = d
		cfg.Start = history.StartDate(d)
	}

	switch {
	case opts.stopPage > 0:
		cfg.Stop = history.StopPage(opts.stopPage)
	case opts.stopDate != "":
		d, err := parseDate(opts.stopDate)
		if err != nil {
			return cfg, err
		}
		cfg.Stop = history.StopDate(d)
	default:
		sinceLast := r.cfg.Download.StopAtLast
		if opts.sinceLastOK {
			sinceLast = opts.sinceLast
		}
		if !sinceLast {
			break
		}
		newest, ok, err := store.Newest()
		if err != nil {
			return cfg, err
		}
		if !ok {
			break
		}
		if !startDate.IsZero() && !startDate.After(newest.Time) {
			log.Debug().Time("newest", newest.Time).Msg("start date is older than stored history, downloading without a stop date")
			break
		}
		log.Info().Time("newest", newest.Time).Msg("stopping at newest stored transaction")
		cfg.Stop = history.StopDate(newest.Time)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// download reads every record the reader yields. Records read before an
// error are returned with it.
func download(ctx context.Context, src history.PageSource, cfg history.Config, rec *metrics.Recorder) (downloadResult, error) {
	var res downloadResult

	reader, err := history.Build(ctx, src, cfg)
	if err != nil {
		return res, err
	}
	defer reader.Close()
	res.start = reader.StartPage()

	for {
		record, err := reader.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			res.stats = reader.Stats()
			return res, err
		}
		rec.RecordRead(string(record.Kind()))
		res.records = append(res.records, record)
	}

	res.stats = reader.Stats()
	if b, ok := reader.Balance(); ok {
		res.balance = &b
		rec.SetBalance(b)
	}
	return res, nil
}

func serveMetrics(addr string, rec *metrics.Recorder, log zerolog.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", rec.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
	log.Info().Str("addr", ln.Addr().String()).Msg("serving metrics")

	return func() { _ = srv.Close() }, nil
}

func commitHistory(ctx context.Context, r *repo, added int) error {
	if !r.cfg.Git.AutoCommit || !gitops.IsRepo(r.root) {
		return nil
	}
	var paths []string
	for _, dir := range []string{r.historyDir(), r.logDir()} {
		rel, err := filepath.Rel(r.root, dir)
		if err != nil {
			return err
		}
		paths = append(paths, rel)
	}
	// An interrupted download still commits what it saved.
	ctx = context.WithoutCancel(ctx)
	changed, err := gitops.HasChanges(ctx, r.root, paths...)
	if err != nil || !changed {
		return err
	}
	author := gitops.Author{Name: r.cfg.Git.AuthorName, Email: r.cfg.Git.AuthorEmail}
	_, err = gitops.Commit(ctx, r.root, fmt.Sprintf("download: %d new transactions", added), author, paths...)
	return err
}
