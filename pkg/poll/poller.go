// Package poll runs poll cycles over the printer fleet and schedules them.
package poll

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/geniass/printer-status/pkg/alert"
	dataio "github.com/geniass/printer-status/pkg/io"
	"github.com/geniass/printer-status/pkg/notify"
	"github.com/geniass/printer-status/pkg/scraper"
	"github.com/geniass/printer-status/pkg/web"
)

const (
	DefaultReportSubject = "Printer Status Report"
	DefaultAlertSubject  = "New Printer Alert"
)

type Config struct {
	Printers    []scraper.Printer
	Recipients  []string
	Thresholds  alert.Thresholds
	Parallelism int

	ReportSubject string
	AlertSubject  string
	Location      *time.Location

	// ArchiveDir receives one JSON file per cycle. Empty disables archiving.
	ArchiveDir string
}

type Poller struct {
	cfg     Config
	scraper scraper.Scraper
	mailer  notify.Mailer
	tracker *alert.Tracker
	log     *zap.Logger
	now     func() time.Time

	mu     sync.RWMutex
	latest *dataio.Cycle
}

func New(cfg Config, s scraper.Scraper, m notify.Mailer, t *alert.Tracker, log *zap.Logger) *Poller {
	if cfg.ReportSubject == "" {
		cfg.ReportSubject = DefaultReportSubject
	}
	if cfg.AlertSubject == "" {
		cfg.AlertSubject = DefaultAlertSubject
	}
	return &Poller{
		cfg:     cfg,
		scraper: s,
		mailer:  m,
		tracker: t,
		log:     log,
		now:     time.Now,
	}
}

// Latest returns the most recently completed cycle.
func (p *Poller) Latest() (dataio.Cycle, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.latest == nil {
		return dataio.Cycle{}, false
	}
	return *p.latest, true
}

func (p *Poller) base() web.BaseContext {
	return web.BaseContext{Title: p.cfg.ReportSubject, Location: p.cfg.Location}
}

// RunCycle scrapes every printer, mails the report and any new alerts, and
// archives the result. The returned cycle is non-nil whenever scraping
// finished, even if mailing failed.
func (p *Poller) RunCycle(ctx context.Context) (*dataio.Cycle, error) {
	c := &dataio.Cycle{
		ID:        uuid.NewString(),
		StartedAt: p.now(),
	}
	log := p.log.With(zap.String("cycle", c.ID))
	log.Info("cycle started", zap.Int("printers", len(p.cfg.Printers)))

	records, err := p.scrapeAll(ctx, log)
	if err != nil {
		return nil, err
	}
	c.Records = records

	var answered, unreachable []string
	for _, r := range records {
		if r.Failed() {
			unreachable = append(unreachable, r.Printer)
			continue
		}
		answered = append(answered, r.Printer)
		c.Alerts = append(c.Alerts, alert.Classify(r, p.cfg.Thresholds)...)
	}
	c.FinishedAt = p.now()

	reportErr := p.sendReport(ctx, *c)
	if reportErr != nil {
		log.Error("report email failed", zap.Error(reportErr))
	}

	round := p.tracker.Diff(c.Alerts, answered)
	fresh := round.Fresh
	c.NewAlerts = fresh

	undelivered, alertErr := p.sendAlerts(ctx, fresh, log)
	if err := p.tracker.Commit(round, undelivered); err != nil {
		log.Warn("alert state not persisted", zap.Error(err))
	}

	if p.cfg.ArchiveDir != "" {
		path, err := dataio.SaveCycle(p.cfg.ArchiveDir, *c)
		if err != nil {
			log.Warn("archive cycle", zap.Error(err))
		} else {
			log.Debug("cycle archived", zap.String("path", path))
		}
	}

	p.mu.Lock()
	p.latest = c
	p.mu.Unlock()

	log.Info("cycle finished",
		zap.Duration("took", c.FinishedAt.Sub(c.StartedAt)),
		zap.Int("alerts", len(c.Alerts)),
		zap.Int("new_alerts", len(fresh)),
		zap.Int("unreachable", len(unreachable)),
	)

	if reportErr != nil {
		return c, fmt.Errorf("report email: %w", reportErr)
	}
	if alertErr != nil {
		return c, fmt.Errorf("alert email: %w", alertErr)
	}
	return c, nil
}

// scrapeAll returns one record per printer, in fleet order. A printer that
// cannot be scraped yields a failed record.
func (p *Poller) scrapeAll(ctx context.Context, log *zap.Logger) ([]scraper.Record, error) {
	records := make([]scraper.Record, len(p.cfg.Printers))

	limit := p.cfg.Parallelism
	if limit <= 0 {
		limit = len(p.cfg.Printers)
	}

	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, printer := range p.cfg.Printers {
		i, printer := i, printer
		g.Go(func() error {
			start := p.now()
			r, err := p.scraper.Scrape(gctx, printer)
			if err != nil {
				log.Warn("scrape failed",
					zap.String("printer", printer.Name),
					zap.String("url", printer.URL),
					zap.Error(err),
				)
				r = scraper.FailedRecord(printer, err, p.now())
			} else {
				log.Debug("scraped",
					zap.String("printer", printer.Name),
					zap.Duration("took", p.now().Sub(start)),
				)
			}
			records[i] = r
			return nil
		})
	}
	g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func (p *Poller) sendReport(ctx context.Context, c dataio.Cycle) error {
	rc := web.NewReportContext(p.base(), p.cfg.Thresholds, c)

	var html, text bytes.Buffer
	if err := web.RenderReport(&html, rc); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	if err := web.RenderReportText(&text, rc); err != nil {
		return fmt.Errorf("render report text: %w", err)
	}

	return p.mailer.Send(ctx, notify.Message{
		Subject: p.cfg.ReportSubject,
		To:      p.cfg.Recipients,
		HTML:    html.String(),
		Text:    text.String(),
	})
}

// sendAlerts mails each alert on its own. It returns the alerts that could
// not be sent and the first failure.
func (p *Poller) sendAlerts(ctx context.Context, alerts []alert.Alert, log *zap.Logger) ([]alert.Alert, error) {
	var (
		undelivered []alert.Alert
		first       error
	)
	for _, a := range alerts {
		var html bytes.Buffer
		err := web.RenderAlert(&html, web.AlertContext{BaseContext: p.base(), Message: a.Message})
		if err == nil {
			err = p.mailer.Send(ctx, notify.Message{
				Subject: p.cfg.AlertSubject,
				To:      p.cfg.Recipients,
				HTML:    html.String(),
				Text:    a.Message,
			})
		}
		if err != nil {
			log.Error("alert email failed", zap.String("alert", a.Message), zap.Error(err))
			undelivered = append(undelivered, a)
			if first == nil {
				first = err
			}
			continue
		}
		log.Info("alert sent", zap.String("printer", a.Printer), zap.String("alert", a.Message))
	}
	return undelivered, first
}
