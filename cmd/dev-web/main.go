package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	cli "github.com/jawher/mow.cli"
	"go.uber.org/zap"

	"github.com/geniass/printer-status/pkg/config"
	dataio "github.com/geniass/printer-status/pkg/io"
	"github.com/geniass/printer-status/pkg/logging"
	"github.com/geniass/printer-status/pkg/web"
)

// dev-web re-reads the archive on every request, so template and data
// changes show up on reload.
func main() {
	app := cli.App("dev-web", "Serve the newest archived poll cycle for template development")

	configPath := app.StringOpt("c config", "printers.yaml", "configuration file")
	archiveDir := app.StringOpt("archive-dir", "", "directory of archived cycles; defaults to archive_dir from the config")
	addr := app.StringOpt("addr", ":8080", "listen address")

	app.Action = func() {
		log, err := logging.New("debug", "console", true)
		if err != nil {
			fatal(err)
		}
		defer log.Sync()

		cfg, err := config.Load(*configPath)
		if err != nil {
			fatal(err)
		}
		if *archiveDir == "" {
			*archiveDir = cfg.ArchiveDir
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		base := web.BaseContext{Title: cfg.Report.Subject, Location: cfg.Location()}
		srv := web.NewServer(dataio.DirSource{Dir: *archiveDir}, base, cfg.Thresholds, log.Named("web"))
		log.Info("serving archive", zap.String("dir", *archiveDir))
		if err := srv.ListenAndServe(ctx, *addr); err != nil {
			log.Error("server stopped", zap.Error(err))
			_ = log.Sync()
			cli.Exit(1)
		}
	}

	if err := app.Run(os.Args); err != nil {
		fatal(err)
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	cli.Exit(1)
}
