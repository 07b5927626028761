// Package fleet describes the printers to poll.
package fleet

import (
	"errors"
	"fmt"
	"net/url"
	"os"

	"github.com/gobwas/glob"

	"github.com/geniass/printer-status/pkg/scraper"
)

var ErrNoMatch = errors.New("no printer matches")

// Entry is one printer as written in the config file. Credentials are never
// stored here, only the names of the environment variables holding them.
type Entry struct {
	Name    string `yaml:"name"`
	URL     string `yaml:"url"`
	Address string `yaml:"address"`

	UserIDEnv   string `yaml:"user_id_env,omitempty"`
	PasswordEnv string `yaml:"password_env,omitempty"`
}

func (e Entry) validate() error {
	if e.Name == "" {
		return errors.New("printer without name")
	}
	if e.URL == "" {
		return fmt.Errorf("printer %s: url is required", e.Name)
	}
	u, err := url.Parse(e.URL)
	if err != nil {
		return fmt.Errorf("printer %s: %w", e.Name, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("printer %s: url %q is not an absolute http(s) url", e.Name, e.URL)
	}
	return nil
}

type Fleet []Entry

func (f Fleet) Validate() error {
	if len(f) == 0 {
		return errors.New("no printers configured")
	}

	var errs []error
	seen := make(map[string]bool, len(f))
	for _, e := range f {
		if err := e.validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if seen[e.Name] {
			errs = append(errs, fmt.Errorf("printer %s: duplicate name", e.Name))
		}
		seen[e.Name] = true
	}
	return errors.Join(errs...)
}

// Select returns the printers whose name matches the glob pattern, keeping
// their order. An empty pattern selects the whole fleet.
func (f Fleet) Select(pattern string) (Fleet, error) {
	if pattern == "" {
		return f, nil
	}

	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("pattern %q: %w", pattern, err)
	}

	var out Fleet
	for _, e := range f {
		if g.Match(e.Name) {
			out = append(out, e)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w %q", ErrNoMatch, pattern)
	}
	return out, nil
}

// Printers resolves credentials: a printer's own environment variables win
// over the shared userID and password.
func (f Fleet) Printers(userID, password string) []scraper.Printer {
	ps := make([]scraper.Printer, 0, len(f))
	for _, e := range f {
		p := scraper.Printer{
			Name:     e.Name,
			URL:      e.URL,
			Address:  e.Address,
			UserID:   userID,
			Password: password,
		}
		if v := lookup(e.UserIDEnv); v != "" {
			p.UserID = v
		}
		if v := lookup(e.PasswordEnv); v != "" {
			p.Password = v
		}
		ps = append(ps, p)
	}
	return ps
}

func lookup(name string) string {
	if name == "" {
		return ""
	}
	return os.Getenv(name)
}
