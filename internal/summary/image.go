// Package summary renders the failed records of a batch run as a PNG table
// for the Telegram batch report.
package summary

import (
	"bytes"
	"fmt"
	"image/color"
	"image/png"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fogleman/gg"
)

// Row is one failed record.
type Row struct {
	ID    string
	Class string
	Error string
}

// Report is the content of one rendered table.
type Report struct {
	Driver string
	RunID  string
	Total  int // records processed in the run
	Rows   []Row
	At     time.Time
}

// Rendered at 2x for legibility on phones.
const (
	margin      = 40.0
	padX        = 20.0
	padY        = 16.0
	lineGap     = 4.0
	minRowH     = 72.0
	headerH     = 84.0
	titleH      = 110.0
	footerH     = 80.0
	minColW     = 110.0
	bodyPt      = 26.0
	titlePt     = 40.0
	footerPt    = 24.0
	maxRows     = 50
	maxErrRunes = 300
)

var (
	bgColor       = color.RGBA{R: 248, G: 250, B: 252, A: 255}
	inkColor      = color.RGBA{R: 30, G: 41, B: 59, A: 255}
	headerColor   = color.RGBA{R: 185, G: 28, B: 28, A: 255}
	stripeColor   = color.RGBA{R: 254, G: 242, B: 242, A: 255}
	ruleColor     = color.RGBA{R: 226, G: 232, B: 240, A: 255}
	mutedColor    = color.RGBA{R: 100, G: 116, B: 139, A: 255}
	conflictColor = color.RGBA{R: 180, G: 83, B: 9, A: 255}
	faultColor    = color.RGBA{R: 185, G: 28, B: 28, A: 255}
)

// column describes one table column. limit caps the column width; 0 sizes
// it to content.
type column struct {
	title string
	cell  func(Row) string
	limit float64
}

var columns = []column{
	{"Complaint ID", func(r Row) string { return r.ID }, 0},
	{"Class", func(r Row) string { return r.Class }, 0},
	{"Error", func(r Row) string { return clip(r.Error, maxErrRunes) }, 900},
}

// classColor tints the class cell: conflicts are amber, everything else red.
func classColor(class string) color.Color {
	switch class {
	case "value_too_long", "duplicate_key":
		return conflictColor
	}
	return faultColor
}

// layout is the measured table: column widths and every cell already
// wrapped into lines.
type layout struct {
	widths  []float64
	heights []float64
	cells   [][][]string // row, column, line
	lineH   float64
}

func (l *layout) width() float64 {
	var w float64
	for _, cw := range l.widths {
		w += cw
	}
	return w
}

func (l *layout) bodyHeight() float64 {
	var h float64
	for _, rh := range l.heights {
		h += rh
	}
	return h
}

// measure sizes columns to their widest cell (within limits) and wraps
// each cell to its column.
func measure(dc *gg.Context, fonts fontSet, rows []Row) (*layout, error) {
	l := &layout{widths: make([]float64, len(columns))}

	if err := dc.LoadFontFace(fonts.bold, bodyPt); err != nil {
		return nil, fmt.Errorf("failed to load bold font: %w", err)
	}
	for i, col := range columns {
		w, _ := dc.MeasureString(col.title)
		l.widths[i] = max(w+2*padX, minColW)
	}

	if err := dc.LoadFontFace(fonts.regular, bodyPt); err != nil {
		return nil, fmt.Errorf("failed to load regular font: %w", err)
	}
	for _, r := range rows {
		for i, col := range columns {
			w, _ := dc.MeasureString(col.cell(r))
			l.widths[i] = max(l.widths[i], w+2*padX)
		}
	}
	for i, col := range columns {
		if col.limit > 0 {
			l.widths[i] = min(l.widths[i], col.limit)
		}
	}

	_, l.lineH = dc.MeasureString("Ay")
	l.cells = make([][][]string, len(rows))
	l.heights = make([]float64, len(rows))
	for ri, r := range rows {
		l.cells[ri] = make([][]string, len(columns))
		lines := 1
		for ci, col := range columns {
			wrapped := wrap(dc, col.cell(r), l.widths[ci]-2*padX)
			l.cells[ri][ci] = wrapped
			lines = max(lines, len(wrapped))
		}
		l.heights[ri] = max(float64(lines)*(l.lineH+lineGap)+2*padY, minRowH)
	}
	return l, nil
}

// wrap breaks text into lines no wider than limit. Words wider than the
// limit (URLs, SQL fragments) are split by rune.
func wrap(dc *gg.Context, text string, limit float64) []string {
	text = strings.TrimSpace(strings.ReplaceAll(text, "\n", " "))
	if w, _ := dc.MeasureString(text); limit <= 0 || w <= limit {
		return []string{text}
	}

	fits := func(s string) bool {
		w, _ := dc.MeasureString(s)
		return w <= limit
	}

	var lines []string
	line := ""
	for _, word := range strings.Fields(text) {
		candidate := word
		if line != "" {
			candidate = line + " " + word
		}
		if fits(candidate) {
			line = candidate
			continue
		}
		if line != "" {
			lines = append(lines, line)
		}
		line = ""
		for _, r := range word {
			if !fits(line+string(r)) && line != "" {
				lines = append(lines, line)
				line = ""
			}
			line += string(r)
		}
	}
	if line != "" {
		lines = append(lines, line)
	}
	return lines
}

// RenderFailures renders the report's rows as a table image and returns PNG
// bytes. Rows are drawn sorted by id; at most maxRows are drawn and the
// footer counts the rest.
func RenderFailures(rep Report) ([]byte, error) {
	if len(rep.Rows) == 0 {
		return nil, fmt.Errorf("no failed records to render")
	}

	rows := append([]Row(nil), rep.Rows...)
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	hidden := max(len(rows)-maxRows, 0)
	rows = rows[:len(rows)-hidden]
	if rep.At.IsZero() {
		rep.At = time.Now()
	}

	fonts := locateFonts()
	l, err := measure(gg.NewContext(1, 1), fonts, rows)
	if err != nil {
		return nil, err
	}

	tableW := l.width()
	canvasW := tableW + 2*margin
	canvasH := titleH + headerH + l.bodyHeight() + footerH
	dc := gg.NewContext(int(canvasW), int(canvasH))
	dc.SetColor(bgColor)
	dc.Clear()

	if err := dc.LoadFontFace(fonts.bold, titlePt); err != nil {
		return nil, fmt.Errorf("failed to load bold font: %w", err)
	}
	dc.SetColor(inkColor)
	title := fmt.Sprintf("Failed records · %s · %s", rep.Driver, rep.At.Format("2006-01-02 15:04"))
	dc.DrawStringAnchored(title, canvasW/2, titleH/2, 0.5, 0.5)

	drawHeader(dc, fonts, l, margin, titleH)
	drawBody(dc, fonts, l, rows, margin, titleH+headerH)

	// Outer frame and column rules.
	dc.SetColor(ruleColor)
	dc.SetLineWidth(1)
	dc.DrawRoundedRectangle(margin, titleH, tableW, headerH+l.bodyHeight(), 12)
	dc.Stroke()
	x := margin
	for _, w := range l.widths[:len(l.widths)-1] {
		x += w
		dc.DrawLine(x, titleH+headerH, x, titleH+headerH+l.bodyHeight())
		dc.Stroke()
	}

	_ = dc.LoadFontFace(fonts.regular, footerPt)
	dc.SetColor(mutedColor)
	footer := fmt.Sprintf("%d of %d records failed · run %s", len(rep.Rows), rep.Total, rep.RunID)
	if hidden > 0 {
		footer += fmt.Sprintf(" · %d more not shown", hidden)
	}
	dc.DrawStringAnchored(footer, canvasW/2, canvasH-footerH/2, 0.5, 0.5)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dc.Image()); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}

func drawHeader(dc *gg.Context, fonts fontSet, l *layout, x0, y0 float64) {
	dc.SetColor(headerColor)
	dc.DrawRoundedRectangle(x0, y0, l.width(), headerH, 12)
	dc.Fill()

	_ = dc.LoadFontFace(fonts.bold, bodyPt)
	dc.SetColor(color.White)
	x := x0
	for i, col := range columns {
		dc.DrawStringAnchored(col.title, x+l.widths[i]/2, y0+headerH/2, 0.5, 0.5)
		x += l.widths[i]
	}
}

func drawBody(dc *gg.Context, fonts fontSet, l *layout, rows []Row, x0, y0 float64) {
	_ = dc.LoadFontFace(fonts.regular, bodyPt)
	step := l.lineH + lineGap
	y := y0
	for ri, r := range rows {
		rh := l.heights[ri]
		if ri%2 == 1 {
			dc.SetColor(stripeColor)
			dc.DrawRectangle(x0, y, l.width(), rh)
			dc.Fill()
		}
		dc.SetColor(ruleColor)
		dc.SetLineWidth(0.5)
		dc.DrawLine(x0, y+rh, x0+l.width(), y+rh)
		dc.Stroke()

		x := x0
		for ci := range columns {
			if ci == 1 {
				dc.SetColor(classColor(r.Class))
			} else {
				dc.SetColor(inkColor)
			}
			lines := l.cells[ri][ci]
			top := y + (rh-float64(len(lines))*step)/2 + l.lineH
			for li, line := range lines {
				dc.DrawString(line, x+padX, top+float64(li)*step)
			}
			x += l.widths[ci]
		}
		y += rh
	}
}

// clip flattens s to one line and cuts it to limit runes.
func clip(s string, limit int) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\n", " "))
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit]) + "…"
}
