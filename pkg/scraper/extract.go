package scraper

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xpath"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// drawer fill icons served by the management page
var imageToStatus = map[string]DrawerStatus{
	"pap_m00.gif": DrawerEmpty,
	"pap_m04.gif": DrawerOneBar,
	"pap_m07.gif": DrawerTwoBar,
	"pap_m10.gif": DrawerFull,
}

var errElementNotFound = errors.New("element not found")

// Extractor reads toner and drawer state out of a printer status page. The
// lookups are positional: the value sits in the cell next to a header naming
// the color or drawer.
type Extractor struct {
	log     *zap.Logger
	toner   map[Color]*xpath.Expr
	drawers map[Drawer]*xpath.Expr
}

func NewExtractor(log *zap.Logger) *Extractor {
	e := &Extractor{
		log:     log,
		toner:   make(map[Color]*xpath.Expr, len(Colors)),
		drawers: make(map[Drawer]*xpath.Expr, len(Drawers)),
	}
	for _, c := range Colors {
		e.toner[c] = xpath.MustCompile(fmt.Sprintf(`//th[contains(text(), '%s')]/following-sibling::td`, c))
	}
	for _, d := range Drawers {
		e.drawers[d] = xpath.MustCompile(fmt.Sprintf(`//th[contains(text(), '%s')]/following-sibling::td/img`, d))
	}
	return e
}

// Extract parses a status page. Only an unparsable document is an error;
// values that cannot be found or read are reported as N/A.
func (e *Extractor) Extract(r io.Reader) (Status, error) {
	doc, err := htmlquery.Parse(r)
	if err != nil {
		return Status{}, fmt.Errorf("parse status page: %w", err)
	}
	return e.ExtractNode(doc), nil
}

func (e *Extractor) ExtractNode(doc *html.Node) Status {
	s := unknownStatus()

	for _, c := range Colors {
		level, err := e.tonerLevel(doc, c)
		if err != nil {
			e.log.Debug("toner level unavailable", zap.String("color", string(c)), zap.Error(err))
			continue
		}
		s.Toner[c] = level
	}

	for _, d := range Drawers {
		status, err := e.drawerStatus(doc, d)
		if err != nil {
			e.log.Debug("drawer status unavailable", zap.String("drawer", string(d)), zap.Error(err))
			continue
		}
		s.Drawers[d] = status
	}

	return s
}

func (e *Extractor) tonerLevel(doc *html.Node, c Color) (TonerLevel, error) {
	n := htmlquery.QuerySelector(doc, e.toner[c])
	if n == nil {
		return TonerLevel{}, errElementNotFound
	}
	return ParseTonerLevel(htmlquery.InnerText(n))
}

func (e *Extractor) drawerStatus(doc *html.Node, d Drawer) (DrawerStatus, error) {
	n := htmlquery.QuerySelector(doc, e.drawers[d])
	if n == nil {
		return DrawerUnknown, errElementNotFound
	}
	return StatusFromImage(htmlquery.SelectAttr(n, "src")), nil
}

// ParseTonerLevel reads cell text like "45%" or " 45 % remaining ".
func ParseTonerLevel(text string) (TonerLevel, error) {
	v := strings.TrimSpace(text)
	if i := strings.Index(v, "%"); i >= 0 {
		v = strings.TrimSpace(v[:i])
	}
	p, err := strconv.Atoi(v)
	if err != nil {
		return TonerLevel{}, fmt.Errorf("toner value %q: %w", text, err)
	}
	return Percent(p), nil
}

// StatusFromImage maps the icon file name at the end of src to a fill status.
func StatusFromImage(src string) DrawerStatus {
	name := src
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	if s, ok := imageToStatus[name]; ok {
		return s
	}
	return DrawerUnknown
}
