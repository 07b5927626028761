package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	cli "github.com/jawher/mow.cli"
	"go.uber.org/zap"

	"github.com/geniass/printer-status/pkg/config"
	dataio "github.com/geniass/printer-status/pkg/io"
	"github.com/geniass/printer-status/pkg/logging"
	"github.com/geniass/printer-status/pkg/web"
)

func main() {
	app := cli.App("generate-report", "Render an archived poll cycle as an HTML report")

	configPath := app.StringOpt("c config", "printers.yaml", "configuration file (report title, thresholds, time zone)")
	archiveDir := app.StringOpt("archive-dir", "", "directory of archived cycles; defaults to archive_dir from the config")
	cyclePath := app.StringOpt("cycle", "", "render this cycle file instead of the newest one in the archive")
	outputDir := app.StringOpt("o output-dir", "docs", "directory to write the rendered HTML to")
	withText := app.BoolOpt("text", false, "also write the plain-text report")

	app.Action = func() {
		log, err := logging.New("info", "console", false)
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

		c, path, err := loadCycle(*archiveDir, *cyclePath)
		if err != nil {
			fatal(err)
		}
		log.Info("rendering cycle", zap.String("cycle", c.ID), zap.String("path", path))

		if err := os.MkdirAll(*outputDir, os.ModeDir|0775); err != nil {
			fatal(err)
		}

		rc := web.NewReportContext(web.BaseContext{Title: cfg.Report.Subject, Location: cfg.Location()}, cfg.Thresholds, c)
		if err := renderToFile(*outputDir, "index.html", func(w io.Writer) error {
			return web.RenderReport(w, rc)
		}); err != nil {
			fatal(err)
		}
		if *withText {
			if err := renderToFile(*outputDir, "index.txt", func(w io.Writer) error {
				return web.RenderReportText(w, rc)
			}); err != nil {
				fatal(err)
			}
		}
		log.Info("report written", zap.String("dir", *outputDir))
	}

	if err := app.Run(os.Args); err != nil {
		fatal(err)
	}
}

func loadCycle(dir, path string) (dataio.Cycle, string, error) {
	if path != "" {
		c, err := dataio.LoadFile(path)
		return c, path, err
	}
	c, err := dataio.Latest(dir)
	if err != nil {
		return dataio.Cycle{}, "", fmt.Errorf("%s: %w", dir, err)
	}
	return c.Cycle, c.Path, nil
}

func renderToFile(dir string, filename string, renderFunc func(w io.Writer) error) error {
	f, err := os.Create(filepath.Join(dir, filename))
	if err != nil {
		return err
	}
	defer f.Close()

	if err := renderFunc(f); err != nil {
		return err
	}
	return nil
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	cli.Exit(1)
}
