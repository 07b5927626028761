package scraper

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestExtractFullStatusPage(t *testing.T) {
	page := statusPage(map[Color]string{
		Cyan:    "45%",
		Magenta: " 8 %",
		Yellow:  "100%",
		Black:   "19%",
	}, map[Drawer]string{
		Drawer1: "/media/pap_m10.gif",
		Drawer2: "/media/pap_m00.gif",
		Drawer3: "pap_m07.gif",
		Drawer4: "/media/pap_m04.gif",
	})

	s, err := NewExtractor(zaptest.NewLogger(t)).Extract(strings.NewReader(page))
	require.NoError(t, err)

	assert.Equal(t, Percent(45), s.Toner[Cyan])
	assert.Equal(t, Percent(8), s.Toner[Magenta])
	assert.Equal(t, Percent(100), s.Toner[Yellow])
	assert.Equal(t, Percent(19), s.Toner[Black])

	assert.Equal(t, DrawerFull, s.Drawers[Drawer1])
	assert.Equal(t, DrawerEmpty, s.Drawers[Drawer2])
	assert.Equal(t, DrawerTwoBar, s.Drawers[Drawer3])
	assert.Equal(t, DrawerOneBar, s.Drawers[Drawer4])
}

func TestExtractMissingElementsAreUnknown(t *testing.T) {
	page := statusPage(map[Color]string{
		Cyan:  "45%",
		Black: "--",
	}, map[Drawer]string{
		Drawer1: "/media/pap_m10.gif",
		Drawer2: "/media/pap_unknown.gif",
	})

	s, err := NewExtractor(zaptest.NewLogger(t)).Extract(strings.NewReader(page))
	require.NoError(t, err)

	assert.Equal(t, Percent(45), s.Toner[Cyan])
	assert.Equal(t, TonerLevel{}, s.Toner[Magenta])
	assert.Equal(t, TonerLevel{}, s.Toner[Yellow])
	assert.Equal(t, TonerLevel{}, s.Toner[Black], "unparsable text is unknown")

	assert.Equal(t, DrawerFull, s.Drawers[Drawer1])
	assert.Equal(t, DrawerUnknown, s.Drawers[Drawer2])
	assert.Equal(t, DrawerUnknown, s.Drawers[Drawer3])
	assert.Equal(t, DrawerUnknown, s.Drawers[Drawer4])
}

func TestExtractEmptyDocument(t *testing.T) {
	s, err := NewExtractor(zaptest.NewLogger(t)).Extract(strings.NewReader(""))
	require.NoError(t, err)
	for _, c := range Colors {
		assert.Equal(t, "N/A", s.Toner[c].String())
	}
	for _, d := range Drawers {
		assert.Equal(t, DrawerUnknown, s.Drawers[d])
	}
}

func TestParseTonerLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    TonerLevel
		wantErr bool
	}{
		{in: "45%", want: Percent(45)},
		{in: "  7 % ", want: Percent(7)},
		{in: "100", want: Percent(100)},
		{in: "0%(Replace)", want: Percent(0)},
		{in: "", wantErr: true},
		{in: "Low%", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTonerLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStatusFromImage(t *testing.T) {
	assert.Equal(t, DrawerEmpty, StatusFromImage("https://printer:8443/media/pap_m00.gif"))
	assert.Equal(t, DrawerOneBar, StatusFromImage("pap_m04.gif"))
	assert.Equal(t, DrawerUnknown, StatusFromImage("https://printer:8443/media/pap_m99.gif"))
	assert.Equal(t, DrawerUnknown, StatusFromImage(""))
}

func TestTonerLevelString(t *testing.T) {
	assert.Equal(t, "N/A", TonerLevel{}.String())
	assert.Equal(t, "0%", Percent(0).String())
	assert.Equal(t, 100, TonerLevel{}.SortKey())
	assert.Equal(t, 12, Percent(12).SortKey())
}
