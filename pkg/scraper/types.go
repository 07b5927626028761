package scraper

import (
	"context"
	"fmt"
	"time"
)

type Color string

const (
	Cyan    Color = "Cyan"
	Magenta Color = "Magenta"
	Yellow  Color = "Yellow"
	Black   Color = "Black"
)

// Colors is the fixed column order of toner channels.
var Colors = []Color{Cyan, Magenta, Yellow, Black}

type Drawer string

const (
	Drawer1 Drawer = "Drawer 1"
	Drawer2 Drawer = "Drawer 2"
	Drawer3 Drawer = "Drawer 3"
	Drawer4 Drawer = "Drawer 4"
)

var Drawers = []Drawer{Drawer1, Drawer2, Drawer3, Drawer4}

type DrawerStatus string

const (
	DrawerEmpty   DrawerStatus = "Empty"
	DrawerOneBar  DrawerStatus = "1 Bar"
	DrawerTwoBar  DrawerStatus = "2 Bar"
	DrawerFull    DrawerStatus = "3 Bar"
	DrawerUnknown DrawerStatus = "N/A"
)

// TonerLevel is a percentage reported by the printer, or unknown when the
// page did not contain a readable value.
type TonerLevel struct {
	Percent int  `json:"percent"`
	Known   bool `json:"known"`
}

func Percent(p int) TonerLevel {
	return TonerLevel{Percent: p, Known: true}
}

func (t TonerLevel) String() string {
	if !t.Known {
		return "N/A"
	}
	return fmt.Sprintf("%d%%", t.Percent)
}

// SortKey treats unknown levels as full so they sink to the bottom of the report.
func (t TonerLevel) SortKey() int {
	if !t.Known {
		return 100
	}
	return t.Percent
}

type Printer struct {
	Name    string
	URL     string
	Address string

	UserID   string
	Password string
}

// Status is what a printer's status page yields.
type Status struct {
	Toner   map[Color]TonerLevel
	Drawers map[Drawer]DrawerStatus
}

func unknownStatus() Status {
	s := Status{
		Toner:   make(map[Color]TonerLevel, len(Colors)),
		Drawers: make(map[Drawer]DrawerStatus, len(Drawers)),
	}
	for _, c := range Colors {
		s.Toner[c] = TonerLevel{}
	}
	for _, d := range Drawers {
		s.Drawers[d] = DrawerUnknown
	}
	return s
}

// Record is one row of the report. Every printer yields at most one per cycle.
type Record struct {
	Printer   string                  `json:"printer"`
	Address   string                  `json:"address"`
	URL       string                  `json:"url"`
	Toner     map[Color]TonerLevel    `json:"toner"`
	Drawers   map[Drawer]DrawerStatus `json:"drawers"`
	ScrapedAt time.Time               `json:"scraped_at"`
	Err       string                  `json:"error,omitempty"`
}

func NewRecord(p Printer, s Status, at time.Time) Record {
	return Record{
		Printer:   p.Name,
		Address:   p.Address,
		URL:       p.URL,
		Toner:     s.Toner,
		Drawers:   s.Drawers,
		ScrapedAt: at,
	}
}

// FailedRecord keeps an unreachable printer in the report with every value unknown.
func FailedRecord(p Printer, err error, at time.Time) Record {
	r := NewRecord(p, unknownStatus(), at)
	r.Err = err.Error()
	return r
}

func (r Record) Failed() bool {
	return r.Err != ""
}

func (r Record) TonerLevel(c Color) TonerLevel {
	return r.Toner[c]
}

func (r Record) DrawerStatus(d Drawer) DrawerStatus {
	if s, ok := r.Drawers[d]; ok {
		return s
	}
	return DrawerUnknown
}

type Scraper interface {
	Scrape(ctx context.Context, p Printer) (Record, error)
}
