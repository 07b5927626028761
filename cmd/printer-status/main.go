package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	cli "github.com/jawher/mow.cli"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/geniass/printer-status/pkg/alert"
	"github.com/geniass/printer-status/pkg/config"
	"github.com/geniass/printer-status/pkg/logging"
	"github.com/geniass/printer-status/pkg/notify"
	"github.com/geniass/printer-status/pkg/poll"
	"github.com/geniass/printer-status/pkg/scraper"
	"github.com/geniass/printer-status/pkg/web"
)

func main() {
	app := cli.App("printer-status", "Poll printer toner and paper levels and email reports and alerts")

	configPath := app.String(cli.StringOpt{
		Name:   "c config",
		Value:  "printers.yaml",
		Desc:   "configuration file",
		EnvVar: "PRINTER_STATUS_CONFIG",
	})
	envFile := app.StringOpt("env-file", ".env", "file with PRINTER_* and SMTP_* credentials, loaded if present")
	verbose := app.BoolOpt("v verbose", false, "debug logging")

	var (
		cfg *config.Config
		log *zap.Logger
		// set by a failed command; reported once the logger has been flushed
		cmdErr error
	)

	app.Before = func() {
		if err := config.LoadEnv(*envFile); err != nil {
			fatal(err)
		}

		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			fatal(err)
		}

		log, err = logging.New(cfg.Logging.Level, cfg.Logging.Format, *verbose)
		if err != nil {
			fatal(err)
		}
	}

	app.Command("run", "poll on the configured schedule until interrupted", func(cmd *cli.Cmd) {
		cmd.Action = func() {
			if err := run(cfg, log); err != nil {
				log.Error("run failed", zap.Error(err))
				cmdErr = err
			}
		}
	})

	app.Command("check", "poll every printer once now", func(cmd *cli.Cmd) {
		dryRun := cmd.StringOpt("dry-run", "", "write emails as HTML files into this directory instead of sending them")
		only := cmd.StringOpt("only", "", "glob selecting printers by name, e.g. 'Pollak*'")

		cmd.Action = func() {
			if err := check(cfg, log, *dryRun, *only); err != nil {
				log.Error("check failed", zap.Error(err))
				cmdErr = err
			}
		}
	})

	app.Command("init-config", "write the default configuration to the config file", func(cmd *cli.Cmd) {
		force := cmd.BoolOpt("f force", false, "overwrite an existing file")

		cmd.Action = func() {
			if err := initConfig(*configPath, *force); err != nil {
				log.Error("init-config failed", zap.Error(err))
				cmdErr = err
				return
			}
			log.Info("configuration written", zap.String("path", *configPath))
		}
	})

	err := app.Run(os.Args)
	if log != nil {
		_ = log.Sync()
	}
	if err != nil {
		fatal(err)
	}
	if cmdErr != nil {
		os.Exit(1)
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newPoller(cfg *config.Config, log *zap.Logger, pc poll.Config, m notify.Mailer, store alert.Store) (*poll.Poller, error) {
	s, err := scraper.New(cfg.ScraperOptions(), log.Named("scraper"))
	if err != nil {
		return nil, err
	}
	tracker, err := alert.NewTracker(store)
	if err != nil {
		return nil, err
	}
	if prev := tracker.Previous(); len(prev) > 0 {
		log.Info("alert state loaded",
			zap.Int("alerts", len(prev)),
			zap.Strings("announced", alert.NewSet(prev).Sorted()),
		)
	}
	return poll.New(pc, s, m, tracker, log.Named("poll")), nil
}

// initConfig writes the defaults to path, leaving an existing file alone
// unless force is set.
func initConfig(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists", path)
	}
	return config.DefaultConfig().Save(path)
}

func run(cfg *config.Config, log *zap.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.ValidateCredentials(cfg.Printers); err != nil {
		return err
	}
	if err := cfg.ValidateMail(); err != nil {
		return err
	}

	store, err := alert.OpenBoltStore(cfg.StateFile)
	if err != nil {
		return err
	}
	defer store.Close()

	mailer := notify.NewSMTPMailer(cfg.SMTPConfig(), log.Named("notify"))
	poller, err := newPoller(cfg, log, cfg.PollConfig(cfg.Printers), mailer, store)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return poll.NewScheduler(cfg.Schedule, cfg.RunOnStart, poller, log.Named("scheduler")).Run(ctx)
	})
	if cfg.Listen != "" {
		base := web.BaseContext{Title: cfg.Report.Subject, Location: cfg.Location()}
		srv := web.NewServer(poller, base, cfg.Thresholds, log.Named("web"))
		g.Go(func() error {
			return srv.ListenAndServe(ctx, cfg.Listen)
		})
	}

	log.Info("printer-status running",
		zap.Int("printers", len(cfg.Printers)),
		zap.String("schedule", cfg.Schedule),
		zap.String("listen", cfg.Listen),
	)
	return g.Wait()
}

func check(cfg *config.Config, log *zap.Logger, dryRun, only string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	printers, err := cfg.Printers.Select(only)
	if err != nil {
		return err
	}
	if err := cfg.ValidateCredentials(printers); err != nil {
		return err
	}

	var (
		mailer notify.Mailer
		store  alert.Store
	)
	if dryRun != "" {
		// A dry run must not consume alerts that the daemon has yet to announce.
		mailer = notify.NewDirMailer(dryRun, log.Named("notify"))
		store = alert.NewMemoryStore()
	} else {
		if err := cfg.ValidateMail(); err != nil {
			return err
		}
		mailer = notify.NewSMTPMailer(cfg.SMTPConfig(), log.Named("notify"))
		bolt, err := alert.OpenBoltStore(cfg.StateFile)
		if err != nil {
			return err
		}
		store = bolt
	}
	defer store.Close()

	pc := cfg.PollConfig(printers)
	if dryRun != "" {
		pc.ArchiveDir = dryRun
		if len(pc.Recipients) == 0 {
			pc.Recipients = []string{"dry-run@localhost"}
		}
	}

	poller, err := newPoller(cfg, log, pc, mailer, store)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	c, err := poller.RunCycle(ctx)
	if c != nil {
		for _, r := range web.SortRecords(c.Records) {
			if r.Failed() {
				fmt.Printf("%-20s unreachable: %s\n", r.Printer, r.Err)
				continue
			}
			fmt.Printf("%-20s", r.Printer)
			for _, col := range scraper.Colors {
				fmt.Printf(" %s=%s", col, r.TonerLevel(col))
			}
			for _, d := range scraper.Drawers {
				fmt.Printf(" [%s: %s]", d, r.DrawerStatus(d))
			}
			fmt.Println()
		}
		for _, a := range c.Alerts {
			fmt.Println("ALERT", a.Message)
		}
	}
	return err
}
