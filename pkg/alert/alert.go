// Package alert turns scraped printer records into human-readable alerts and
// remembers which alerts were already announced.
package alert

import (
	"fmt"

	"github.com/geniass/printer-status/pkg/scraper"
)

type Kind string

const (
	KindPaperEmpty  Kind = "paper_empty"
	KindTonerRefill Kind = "toner_refill"
	KindTonerSoon   Kind = "toner_soon"
)

type Alert struct {
	Printer string `json:"printer"`
	Kind    Kind   `json:"kind"`
	// Subject is the color or drawer the alert is about.
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// Thresholds are inclusive upper bounds in percent.
type Thresholds struct {
	Refill int `yaml:"refill"`
	Soon   int `yaml:"soon"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{Refill: 10, Soon: 20}
}

// Classify returns the alerts for one record: empty drawers first, then toner,
// each in their fixed order.
func Classify(r scraper.Record, t Thresholds) []Alert {
	var alerts []Alert

	for _, d := range scraper.Drawers {
		if r.DrawerStatus(d) == scraper.DrawerEmpty {
			alerts = append(alerts, Alert{
				Printer: r.Printer,
				Kind:    KindPaperEmpty,
				Subject: string(d),
				Message: fmt.Sprintf("%s needs paper refill on %s", r.Printer, d),
			})
		}
	}

	for _, c := range scraper.Colors {
		level := r.TonerLevel(c)
		if !level.Known {
			continue
		}
		switch {
		case level.Percent <= t.Refill:
			alerts = append(alerts, Alert{
				Printer: r.Printer,
				Kind:    KindTonerRefill,
				Subject: string(c),
				Message: fmt.Sprintf("%s: %s toner needs refill", r.Printer, c),
			})
		case level.Percent <= t.Soon:
			alerts = append(alerts, Alert{
				Printer: r.Printer,
				Kind:    KindTonerSoon,
				Subject: string(c),
				Message: fmt.Sprintf("%s: %s toner will need refill soon", r.Printer, c),
			})
		}
	}

	return alerts
}

func Messages(alerts []Alert) []string {
	msgs := make([]string, 0, len(alerts))
	for _, a := range alerts {
		msgs = append(msgs, a.Message)
	}
	return msgs
}
