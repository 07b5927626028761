package alert

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/geniass/printer-status/pkg/scraper"
)

func record(name string, toner [4]int, drawers [4]scraper.DrawerStatus) scraper.Record {
	r := scraper.Record{
		Printer: name,
		Toner:   map[scraper.Color]scraper.TonerLevel{},
		Drawers: map[scraper.Drawer]scraper.DrawerStatus{},
	}
	for i, c := range scraper.Colors {
		if toner[i] >= 0 {
			r.Toner[c] = scraper.Percent(toner[i])
		} else {
			r.Toner[c] = scraper.TonerLevel{}
		}
	}
	for i, d := range scraper.Drawers {
		r.Drawers[d] = drawers[i]
	}
	return r
}

var allFull = [4]scraper.DrawerStatus{scraper.DrawerFull, scraper.DrawerFull, scraper.DrawerFull, scraper.DrawerFull}

func TestClassifyThresholds(t *testing.T) {
	tests := []struct {
		level int
		want  []string
	}{
		{level: 0, want: []string{"P: Cyan toner needs refill"}},
		{level: 10, want: []string{"P: Cyan toner needs refill"}},
		{level: 11, want: []string{"P: Cyan toner will need refill soon"}},
		{level: 20, want: []string{"P: Cyan toner will need refill soon"}},
		{level: 21, want: []string{}},
		{level: -1, want: []string{}},
	}
	for _, tt := range tests {
		r := record("P", [4]int{tt.level, 100, 100, 100}, allFull)
		got := Messages(Classify(r, DefaultThresholds()))
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("level %d (-want +got):\n%s", tt.level, diff)
		}
	}
}

func TestClassifyOrder(t *testing.T) {
	r := record("PollakFloor4", [4]int{50, 15, -1, 3}, [4]scraper.DrawerStatus{
		scraper.DrawerEmpty, scraper.DrawerOneBar, scraper.DrawerUnknown, scraper.DrawerEmpty,
	})

	got := Classify(r, DefaultThresholds())

	want := []Alert{
		{Printer: "PollakFloor4", Kind: KindPaperEmpty, Subject: "Drawer 1", Message: "PollakFloor4 needs paper refill on Drawer 1"},
		{Printer: "PollakFloor4", Kind: KindPaperEmpty, Subject: "Drawer 4", Message: "PollakFloor4 needs paper refill on Drawer 4"},
		{Printer: "PollakFloor4", Kind: KindTonerSoon, Subject: "Magenta", Message: "PollakFloor4: Magenta toner will need refill soon"},
		{Printer: "PollakFloor4", Kind: KindTonerRefill, Subject: "Black", Message: "PollakFloor4: Black toner needs refill"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Classify (-want +got):\n%s", diff)
	}
}

func TestClassifyCustomThresholds(t *testing.T) {
	r := record("P", [4]int{25, 40, 100, 100}, allFull)
	got := Messages(Classify(r, Thresholds{Refill: 25, Soon: 40}))
	assert.Equal(t, []string{"P: Cyan toner needs refill", "P: Magenta toner will need refill soon"}, got)
}

func TestClassifyFailedRecord(t *testing.T) {
	assert.Empty(t, Classify(scraper.Record{Printer: "X", Err: "timeout"}, DefaultThresholds()))
}
