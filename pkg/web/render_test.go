package web

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geniass/printer-status/pkg/alert"
	"github.com/geniass/printer-status/pkg/scraper"
)

func makeRecord(name string, toner [4]int, drawers [4]scraper.DrawerStatus) scraper.Record {
	r := scraper.Record{
		Printer: name,
		Address: "Address of " + name,
		URL:     "https://" + strings.ToLower(name) + ".example.edu:8443/",
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

var fullDrawers = [4]scraper.DrawerStatus{scraper.DrawerFull, scraper.DrawerFull, scraper.DrawerFull, scraper.DrawerUnknown}

func testReport(records []scraper.Record, alerts []string) ReportContext {
	return ReportContext{
		BaseContext: BaseContext{Title: "Printer Status Report", Location: time.UTC},
		GeneratedAt: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
		Records:     records,
		Alerts:      alerts,
		Thresholds:  alert.DefaultThresholds(),
	}
}

func renderDoc(t *testing.T, c ReportContext) *goquery.Document {
	var buf bytes.Buffer
	require.NoError(t, RenderReport(&buf, c))
	doc, err := goquery.NewDocumentFromReader(&buf)
	require.NoError(t, err)
	return doc
}

func TestSortRecords(t *testing.T) {
	records := []scraper.Record{
		makeRecord("Unknown", [4]int{-1, -1, -1, -1}, fullDrawers),
		makeRecord("Full", [4]int{90, 90, 90, 90}, fullDrawers),
		makeRecord("LowCyan", [4]int{5, 90, 90, 90}, fullDrawers),
		makeRecord("TieB", [4]int{50, 50, 50, 50}, [4]scraper.DrawerStatus{scraper.DrawerEmpty, scraper.DrawerFull, scraper.DrawerFull, scraper.DrawerFull}),
		makeRecord("TieA", [4]int{50, 50, 50, 50}, [4]scraper.DrawerStatus{scraper.DrawerOneBar, scraper.DrawerFull, scraper.DrawerFull, scraper.DrawerFull}),
		makeRecord("LowBlack", [4]int{90, 90, 90, 2}, fullDrawers),
	}

	var names []string
	for _, r := range SortRecords(records) {
		names = append(names, r.Printer)
	}
	assert.Equal(t, []string{"LowCyan", "TieA", "TieB", "LowBlack", "Full", "Unknown"}, names)
	assert.Equal(t, "Unknown", records[0].Printer, "input must not be reordered")
}

func TestRenderReportTable(t *testing.T) {
	doc := renderDoc(t, testReport([]scraper.Record{
		makeRecord("HSLFirstFloor", [4]int{80, 10, 11, -1}, [4]scraper.DrawerStatus{
			scraper.DrawerEmpty, scraper.DrawerOneBar, scraper.DrawerTwoBar, scraper.DrawerUnknown,
		}),
	}, []string{"HSLFirstFloor needs paper refill on Drawer 1"}))

	assert.Equal(t, "Printer Status Report", doc.Find("title").Text())
	assert.Equal(t, "Printer Status Report", doc.Find(".header h1").Text())

	var headers []string
	doc.Find("table.printer-table thead th").Each(func(_ int, s *goquery.Selection) {
		headers = append(headers, s.Text())
	})
	assert.Equal(t, []string{"Printer", "Address", "Cyan", "Magenta", "Yellow", "Black",
		"Drawer 1", "Drawer 2", "Drawer 3", "Drawer 4"}, headers)
	assert.True(t, doc.Find("thead th.magenta").Length() == 1)

	cells := doc.Find("table.printer-table tbody tr").First().Find("td")
	require.Equal(t, 10, cells.Length())

	var texts []string
	cells.Each(func(_ int, s *goquery.Selection) {
		texts = append(texts, s.Text())
	})
	assert.Equal(t, []string{"HSLFirstFloor", "Address of HSLFirstFloor", "80%", "10%", "11%", "N/A",
		"Empty", "1 Bar", "2 Bar", "N/A"}, texts)

	assert.False(t, cells.Eq(2).HasClass("low-toner"))
	assert.True(t, cells.Eq(3).HasClass("low-toner"))
	assert.False(t, cells.Eq(4).HasClass("low-toner"))
	assert.False(t, cells.Eq(5).HasClass("low-toner"))
	assert.True(t, cells.Eq(6).HasClass("empty-paper"))
	assert.False(t, cells.Eq(7).HasClass("empty-paper"))

	assert.Equal(t, "Alerts", doc.Find("h2").First().Text())
	assert.Equal(t, "HSLFirstFloor needs paper refill on Drawer 1", doc.Find("ul.alert li").Text())
	assert.Contains(t, doc.Find(".footer").Text(), "2024-05-01T09:00:00 UTC")
}

func TestRenderReportNoAlerts(t *testing.T) {
	doc := renderDoc(t, testReport([]scraper.Record{
		makeRecord("SmithRoom350", [4]int{80, 80, 80, 80}, fullDrawers),
	}, nil))

	assert.Equal(t, 0, doc.Find("ul.alert").Length())
	assert.Contains(t, doc.Find(".container p").Text(), "No alerts. All printers are in good condition.")
	assert.Equal(t, 0, doc.Find("ul.unreachable").Length())
}

func TestRenderReportUnreachable(t *testing.T) {
	failed := scraper.FailedRecord(scraper.Printer{Name: "Frank101", URL: "https://frank.example.edu/"},
		assert.AnError, time.Time{})
	doc := renderDoc(t, testReport([]scraper.Record{failed}, nil))

	assert.Equal(t, 1, doc.Find("table.printer-table tbody tr").Length())
	item := doc.Find("ul.unreachable li").Text()
	assert.Contains(t, item, "Frank101")
	assert.Contains(t, item, assert.AnError.Error())
}

func TestRenderReportEscapesNames(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderReport(&buf, testReport([]scraper.Record{
		makeRecord("<script>x</script>", [4]int{80, 80, 80, 80}, fullDrawers),
	}, nil)))
	assert.NotContains(t, buf.String(), "<script>x</script>")
}

func TestRenderAlert(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderAlert(&buf, AlertContext{Message: "PollakFloor3: Cyan toner needs refill"}))
	assert.Equal(t, "<p>PollakFloor3: Cyan toner needs refill</p>", strings.TrimSpace(buf.String()))
}

func TestRenderReportText(t *testing.T) {
	failed := scraper.FailedRecord(scraper.Printer{Name: "Frank101"}, assert.AnError, time.Time{})

	var buf bytes.Buffer
	require.NoError(t, RenderReportText(&buf, testReport([]scraper.Record{failed}, []string{"A: Cyan toner needs refill"})))
	out := buf.String()
	assert.Contains(t, out, "Please view this email in HTML format")
	assert.Contains(t, out, "- A: Cyan toner needs refill")
	assert.Contains(t, out, "- Frank101: "+assert.AnError.Error())

	buf.Reset()
	require.NoError(t, RenderReportText(&buf, testReport(nil, nil)))
	assert.Contains(t, buf.String(), "No alerts. All printers are in good condition.")
}
