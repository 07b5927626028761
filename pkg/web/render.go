package web

import (
	"embed"
	"html/template"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/geniass/printer-status/pkg/alert"
	dataio "github.com/geniass/printer-status/pkg/io"
	"github.com/geniass/printer-status/pkg/scraper"
)

//go:embed templates
var templatesFs embed.FS

const (
	classLowToner   = "low-toner"
	classEmptyPaper = "empty-paper"
)

type BaseContext struct {
	Title    string
	Location *time.Location
}

type ReportContext struct {
	BaseContext
	GeneratedAt time.Time
	Records     []scraper.Record
	Alerts      []string
	Thresholds  alert.Thresholds
}

func NewReportContext(base BaseContext, t alert.Thresholds, c dataio.Cycle) ReportContext {
	return ReportContext{
		BaseContext: base,
		GeneratedAt: c.FinishedAt,
		Records:     c.Records,
		Alerts:      alert.Messages(c.Alerts),
		Thresholds:  t,
	}
}

type AlertContext struct {
	BaseContext
	Message string
}

type Cell struct {
	Text  string
	Class string
}

type Row struct {
	Printer string
	Address string
	Toner   []Cell
	Drawers []Cell
}

func (c BaseContext) location() *time.Location {
	if c.Location == nil {
		return time.Local
	}
	return c.Location
}

func (c ReportContext) FormattedGeneratedAt() string {
	return c.GeneratedAt.In(c.location()).Format("2006-01-02T15:04:05 MST")
}

// TonerHeaders are the toner column headers, each styled in its own color.
func (c ReportContext) TonerHeaders() []Cell {
	headers := make([]Cell, 0, len(scraper.Colors))
	for _, color := range scraper.Colors {
		headers = append(headers, Cell{Text: string(color), Class: strings.ToLower(string(color))})
	}
	return headers
}

func (c ReportContext) Drawers() []scraper.Drawer {
	return scraper.Drawers
}

// Rows returns the table rows, lowest supplies first.
func (c ReportContext) Rows() []Row {
	records := SortRecords(c.Records)
	rows := make([]Row, 0, len(records))
	for _, r := range records {
		row := Row{Printer: r.Printer, Address: r.Address}
		for _, color := range scraper.Colors {
			level := r.TonerLevel(color)
			cell := Cell{Text: level.String()}
			if level.Known && level.Percent <= c.Thresholds.Refill {
				cell.Class = classLowToner
			}
			row.Toner = append(row.Toner, cell)
		}
		for _, d := range scraper.Drawers {
			status := r.DrawerStatus(d)
			cell := Cell{Text: string(status)}
			if status == scraper.DrawerEmpty {
				cell.Class = classEmptyPaper
			}
			row.Drawers = append(row.Drawers, cell)
		}
		rows = append(rows, row)
	}
	return rows
}

func (c ReportContext) Unreachable() []scraper.Record {
	var failed []scraper.Record
	for _, r := range c.Records {
		if r.Failed() {
			failed = append(failed, r)
		}
	}
	return failed
}

// SortRecords orders by Cyan, Magenta, Yellow, Black (unknown counts as 100),
// then by drawer status text, then by printer name. The input is not modified.
func SortRecords(records []scraper.Record) []scraper.Record {
	sorted := append([]scraper.Record(nil), records...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		for _, c := range scraper.Colors {
			ka, kb := a.TonerLevel(c).SortKey(), b.TonerLevel(c).SortKey()
			if ka != kb {
				return ka < kb
			}
		}
		for _, d := range scraper.Drawers {
			sa, sb := a.DrawerStatus(d), b.DrawerStatus(d)
			if sa != sb {
				return sa < sb
			}
		}
		return a.Printer < b.Printer
	})
	return sorted
}

func parse(name string) (*template.Template, error) {
	t, err := template.ParseFS(templatesFs, "templates/"+name)
	if err != nil {
		return nil, err
	}
	return t.ParseFS(templatesFs, "templates/common/*")
}

func RenderReport(w io.Writer, c ReportContext) error {
	t, err := parse("report.html.tpl")
	if err != nil {
		return err
	}
	return t.Execute(w, c)
}

func RenderAlert(w io.Writer, c AlertContext) error {
	t, err := parse("alert.html.tpl")
	if err != nil {
		return err
	}
	return t.Execute(w, c)
}
