package scraper

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/antchfx/htmlquery"
	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
)

const (
	DriverBrowser = "browser"
	DriverHTTP    = "http"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

var (
	ErrUnknownDriver     = errors.New("unknown scrape driver")
	ErrLoginFormNotFound = errors.New("login form not found")
	ErrLoginRejected     = errors.New("login rejected")
)

type Options struct {
	Driver string

	ChromeBin    string
	Headless     bool
	WindowWidth  int
	WindowHeight int

	UserAgent   string
	InsecureTLS bool

	NavigationTimeout   time.Duration
	InterstitialTimeout time.Duration
	ElementTimeout      time.Duration
	// SettleDelay is how long to wait after submitting the login form before
	// reading the status page.
	SettleDelay time.Duration
}

func DefaultOptions() Options {
	return Options{
		Driver:              DriverBrowser,
		Headless:            true,
		WindowWidth:         1920,
		WindowHeight:        1080,
		UserAgent:           defaultUserAgent,
		InsecureTLS:         true,
		NavigationTimeout:   30 * time.Second,
		InterstitialTimeout: 3 * time.Second,
		ElementTimeout:      5 * time.Second,
		SettleDelay:         3 * time.Second,
	}
}

// New returns the Scraper for opts.Driver. An empty driver means the browser.
func New(opts Options, log *zap.Logger) (Scraper, error) {
	switch opts.Driver {
	case DriverBrowser, "":
		return NewBrowserScraper(opts, log), nil
	case DriverHTTP:
		return NewHTTPScraper(opts, log), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, opts.Driver)
	}
}

// HTTPScraper logs in by posting the management page's login form directly.
// It only works for printers whose pages render without JavaScript.
type HTTPScraper struct {
	opts      Options
	extractor *Extractor
	log       *zap.Logger
	now       func() time.Time
}

func NewHTTPScraper(opts Options, log *zap.Logger) *HTTPScraper {
	return &HTTPScraper{
		opts:      opts,
		extractor: NewExtractor(log),
		log:       log,
		now:       time.Now,
	}
}

func (s *HTTPScraper) Scrape(ctx context.Context, p Printer) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	log := s.log.With(zap.String("printer", p.Name), zap.String("url", p.URL))

	c := colly.NewCollector(
		colly.UserAgent(s.opts.UserAgent),
		colly.AllowURLRevisit(),
	)
	if s.opts.NavigationTimeout > 0 {
		c.SetRequestTimeout(s.opts.NavigationTimeout)
	}
	if s.opts.InsecureTLS {
		// printers ship self-signed certificates
		c.WithTransport(&http.Transport{
			Proxy:           http.ProxyFromEnvironment,
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		})
	}

	var (
		status   Status
		found    bool
		posted   bool
		stageErr error
		reqErr   error
	)

	c.OnRequest(func(r *colly.Request) {
		log.Debug("visiting", zap.String("method", r.Method), zap.String("target", r.URL.String()))
	})

	c.OnHTML(`form:has(input[name="userID"])`, func(e *colly.HTMLElement) {
		if posted {
			return
		}
		posted = true

		data := map[string]string{}
		e.ForEach(`input[type="hidden"]`, func(_ int, in *colly.HTMLElement) {
			if name := in.Attr("name"); name != "" {
				data[name] = in.Attr("value")
			}
		})
		data["userID"] = p.UserID
		data["password"] = p.Password

		action := e.Request.AbsoluteURL(e.Attr("action"))
		if err := e.Request.Post(action, data); err != nil && stageErr == nil {
			stageErr = fmt.Errorf("submit login form to %s: %w", action, err)
		}
	})

	c.OnResponse(func(r *colly.Response) {
		if r.Request.Method != http.MethodPost {
			return
		}
		doc, err := htmlquery.Parse(bytes.NewReader(r.Body))
		if err != nil {
			stageErr = fmt.Errorf("parse status page: %w", err)
			return
		}
		if htmlquery.FindOne(doc, `//input[@name="userID"]`) != nil {
			stageErr = ErrLoginRejected
			return
		}
		status = s.extractor.ExtractNode(doc)
		found = true
	})

	c.OnError(func(r *colly.Response, err error) {
		reqErr = fmt.Errorf("%s %s [%d]: %w", r.Request.Method, r.Request.URL, r.StatusCode, err)
	})

	if err := c.Visit(p.URL); err != nil {
		if reqErr != nil {
			return Record{}, reqErr
		}
		return Record{}, fmt.Errorf("visit %s: %w", p.URL, err)
	}

	switch {
	case stageErr != nil:
		return Record{}, stageErr
	case reqErr != nil:
		return Record{}, reqErr
	case !posted:
		return Record{}, ErrLoginFormNotFound
	case !found:
		return Record{}, fmt.Errorf("no status page after login at %s", p.URL)
	}

	return NewRecord(p, status, s.now()), nil
}
