package scraper

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

const hideWebdriver = `Object.defineProperty(navigator, 'webdriver', {get: () => undefined})`

// BrowserScraper drives a dedicated Chrome process through the printer's
// login flow. Nothing is shared between scrapes.
type BrowserScraper struct {
	opts      Options
	extractor *Extractor
	log       *zap.Logger
	now       func() time.Time
}

func NewBrowserScraper(opts Options, log *zap.Logger) *BrowserScraper {
	return &BrowserScraper{
		opts:      opts,
		extractor: NewExtractor(log),
		log:       log,
		now:       time.Now,
	}
}

func (s *BrowserScraper) launcher(ctx context.Context) *launcher.Launcher {
	l := launcher.New().
		Context(ctx).
		Headless(s.opts.Headless).
		Set(flags.Flag("disable-blink-features"), "AutomationControlled").
		Set(flags.Flag("disable-dev-shm-usage")).
		Set(flags.Flag("disable-infobars")).
		Set(flags.NoSandbox).
		Set(flags.Flag("window-size"), fmt.Sprintf("%d,%d", s.opts.WindowWidth, s.opts.WindowHeight)).
		Delete(flags.Flag("enable-automation"))
	if s.opts.InsecureTLS {
		l = l.Set(flags.Flag("ignore-certificate-errors"))
	}
	if s.opts.ChromeBin != "" {
		l = l.Bin(s.opts.ChromeBin)
	}
	return l
}

func (s *BrowserScraper) Scrape(ctx context.Context, p Printer) (Record, error) {
	log := s.log.With(zap.String("printer", p.Name), zap.String("url", p.URL))

	l := s.launcher(ctx)
	controlURL, err := l.Launch()
	if err != nil {
		return Record{}, fmt.Errorf("launch chrome: %w", err)
	}
	defer func() {
		l.Kill()
		l.Cleanup()
	}()

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return Record{}, fmt.Errorf("connect to chrome: %w", err)
	}
	defer func() {
		if err := browser.Close(); err != nil {
			log.Debug("close browser", zap.Error(err))
		}
	}()

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return Record{}, fmt.Errorf("create page: %w", err)
	}
	s.preparePage(page, log)

	body, err := s.statusPage(ctx, page, p, log)
	if err != nil {
		return Record{}, err
	}

	status, err := s.extractor.Extract(strings.NewReader(body))
	if err != nil {
		return Record{}, err
	}
	return NewRecord(p, status, s.now()), nil
}

func (s *BrowserScraper) preparePage(page *rod.Page, log *zap.Logger) {
	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: s.opts.UserAgent}); err != nil {
		log.Warn("set user agent", zap.Error(err))
	}
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             s.opts.WindowWidth,
		Height:            s.opts.WindowHeight,
		DeviceScaleFactor: 1.0,
	}); err != nil {
		log.Warn("set viewport", zap.Error(err))
	}
	if _, err := page.EvalOnNewDocument(hideWebdriver); err != nil {
		log.Warn("hide webdriver flag", zap.Error(err))
	}
}

// statusPage logs in and returns the HTML of the page shown afterwards.
func (s *BrowserScraper) statusPage(ctx context.Context, page *rod.Page, p Printer, log *zap.Logger) (string, error) {
	navErr := page.Timeout(s.opts.NavigationTimeout).Navigate(p.URL)
	if navErr != nil {
		// certificate interstitials surface as navigation errors
		log.Debug("navigation reported an error", zap.Error(navErr))
	} else if err := page.Timeout(s.opts.NavigationTimeout).WaitLoad(); err != nil {
		log.Debug("wait load", zap.Error(err))
	}

	if s.bypassInterstitial(page) {
		log.Info("bypassed privacy interstitial")
	}

	if err := s.logIn(page, p); err != nil {
		if navErr != nil {
			return "", fmt.Errorf("navigate %s: %w", p.URL, navErr)
		}
		return "", err
	}

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(s.opts.SettleDelay):
	}

	body, err := page.HTML()
	if err != nil {
		return "", fmt.Errorf("read status page: %w", err)
	}
	return body, nil
}

// bypassInterstitial clicks through Chrome's certificate warning if it shows up.
func (s *BrowserScraper) bypassInterstitial(page *rod.Page) bool {
	for _, selector := range []string{"#details-button", "#proceed-link"} {
		el, err := page.Timeout(s.opts.InterstitialTimeout).Element(selector)
		if err != nil {
			return false
		}
		if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
			return false
		}
	}
	return true
}

func (s *BrowserScraper) logIn(page *rod.Page, p Printer) error {
	fields := []struct {
		selector string
		value    string
	}{
		{`[name="userID"]`, p.UserID},
		{`[name="password"]`, p.Password},
	}
	for _, f := range fields {
		el, err := page.Timeout(s.opts.ElementTimeout).Element(f.selector)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrLoginFormNotFound, f.selector, err)
		}
		if err := el.Input(f.value); err != nil {
			return fmt.Errorf("type into %s: %w", f.selector, err)
		}
	}

	submit, err := page.Timeout(s.opts.ElementTimeout).ElementX(`//input[@type="submit" and @value="Log In"]`)
	if err != nil {
		return fmt.Errorf("%w: submit button: %v", ErrLoginFormNotFound, err)
	}
	if err := submit.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("click log in: %w", err)
	}
	return nil
}
