// Package notify delivers report and alert emails.
package notify

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kennygrant/sanitize"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

var ErrNoRecipients = errors.New("message has no recipients")

type Message struct {
	Subject string
	To      []string
	HTML    string
	Text    string
}

type Mailer interface {
	Send(ctx context.Context, m Message) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

// SMTPMailer sends through a STARTTLS submission server with PLAIN auth.
type SMTPMailer struct {
	cfg SMTPConfig
	log *zap.Logger
}

func NewSMTPMailer(cfg SMTPConfig, log *zap.Logger) *SMTPMailer {
	return &SMTPMailer{cfg: cfg, log: log}
}

func (s *SMTPMailer) from() string {
	if s.cfg.From != "" {
		return s.cfg.From
	}
	return s.cfg.Username
}

func buildMsg(from string, m Message) (*mail.Msg, error) {
	if len(m.To) == 0 {
		return nil, ErrNoRecipients
	}

	msg := mail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("from %q: %w", from, err)
	}
	if err := msg.To(m.To...); err != nil {
		return nil, fmt.Errorf("to %v: %w", m.To, err)
	}
	msg.Subject(m.Subject)
	msg.SetDate()
	msg.SetBodyString(mail.TypeTextPlain, m.Text)
	msg.AddAlternativeString(mail.TypeTextHTML, m.HTML)
	return msg, nil
}

func (s *SMTPMailer) Send(ctx context.Context, m Message) error {
	msg, err := buildMsg(s.from(), m)
	if err != nil {
		return err
	}

	opts := []mail.Option{mail.WithTLSPolicy(mail.TLSMandatory)}
	if s.cfg.Port > 0 {
		opts = append(opts, mail.WithPort(s.cfg.Port))
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}
	if s.cfg.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(s.cfg.Timeout))
	}

	client, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client for %s: %w", s.cfg.Host, err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send %q: %w", m.Subject, err)
	}

	s.log.Info("mail sent", zap.String("subject", m.Subject), zap.Strings("to", m.To))
	return nil
}

// DirMailer writes every message into a directory instead of sending it:
// the HTML body to a .html file and, when set, the text body to a .txt file
// with the same name.
type DirMailer struct {
	dir string
	log *zap.Logger

	mu  sync.Mutex
	seq int
	now func() time.Time
}

func NewDirMailer(dir string, log *zap.Logger) *DirMailer {
	return &DirMailer{dir: dir, log: log, now: time.Now}
}

func (d *DirMailer) Send(ctx context.Context, m Message) error {
	if len(m.To) == 0 {
		return ErrNoRecipients
	}
	if err := os.MkdirAll(d.dir, os.ModeDir|0755); err != nil {
		return err
	}

	d.mu.Lock()
	d.seq++
	base := filepath.Join(d.dir, fmt.Sprintf("%s_%03d_%s", d.now().Format("20060102_150405"), d.seq, sanitize.BaseName(m.Subject)))
	d.mu.Unlock()

	path := base + ".html"
	if err := os.WriteFile(path, []byte(m.HTML), 0644); err != nil {
		return err
	}
	if m.Text != "" {
		if err := os.WriteFile(base+".txt", []byte(m.Text), 0644); err != nil {
			return err
		}
	}

	d.log.Info("mail written", zap.String("subject", m.Subject), zap.Strings("to", m.To), zap.String("path", path))
	return nil
}
