// Package summary renders the complaint summary image used by the CLI and
// the Telegram /summary command.
package summary

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"complaintdesk/internal/complaint"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
)

// Table styling constants, rendered at 2x scale for Telegram clarity
const (
	cellPaddingX  = 20
	cellPaddingY  = 16
	minRowHeight  = 76
	headerHeight  = 88
	fontSize      = 26
	headerFontSz  = 26
	titleFontSz   = 40
	cardFontSz    = 44
	titlePadding  = 110
	cardsHeight   = 150
	cardGap       = 20
	footerPadding = 80
	minColWidth   = 110
	minCardWidth  = 190
	maxTitleWidth = 360.0
	maxTextWidth  = 440.0
	maxCellRunes  = 160
)

// Light theme colors
var (
	bgColor         = color.RGBA{R: 245, G: 247, B: 250, A: 255}
	titleColor      = color.RGBA{R: 30, G: 41, B: 59, A: 255}
	headerBgColor   = color.RGBA{R: 37, G: 99, B: 235, A: 255}
	headerTextColor = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	rowEvenColor    = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	rowOddColor     = color.RGBA{R: 241, G: 245, B: 249, A: 255}
	textColor       = color.RGBA{R: 30, G: 41, B: 59, A: 255}
	borderColor     = color.RGBA{R: 203, G: 213, B: 225, A: 255}
	footerColor     = color.RGBA{R: 100, G: 116, B: 139, A: 255}
)

// statusColors tint the stat cards and the status cell.
var statusColors = map[complaint.Status]color.RGBA{
	complaint.StatusPending:    {R: 217, G: 119, B: 6, A: 255},
	complaint.StatusInProgress: {R: 37, G: 99, B: 235, A: 255},
	complaint.StatusResolved:   {R: 22, G: 163, B: 74, A: 255},
	complaint.StatusRejected:   {R: 220, G: 38, B: 38, A: 255},
}

type column struct {
	header   string
	field    func(c *complaint.Complaint) string
	maxWidth float64 // 0 means auto
}

var columns = []column{
	{"ID", func(c *complaint.Complaint) string { return strconv.Itoa(c.ID) }, 0},
	{"Title", func(c *complaint.Complaint) string { return c.Title }, maxTitleWidth},
	{"Subject", func(c *complaint.Complaint) string { return c.Subject }, maxTitleWidth},
	{"Status", func(c *complaint.Complaint) string { return string(c.Status) }, 0},
	{"Response", func(c *complaint.Complaint) string { return c.Response }, maxTextWidth},
}

type card struct {
	label string
	value int
	color color.Color
}

func cards(s complaint.Stats) []card {
	return []card{
		{"Total", s.Total, titleColor},
		{"Pending", s.Pending, statusColors[complaint.StatusPending]},
		{"In Progress", s.InProgress, statusColors[complaint.StatusInProgress]},
		{"Resolved", s.Resolved, statusColors[complaint.StatusResolved]},
		{"Rejected", s.Rejected, statusColors[complaint.StatusRejected]},
	}
}

// fonts loads faces from the system DejaVu fonts when present, and from
// the embedded Go fonts otherwise.
type fonts struct {
	regular *truetype.Font
	bold    *truetype.Font
}

var (
	loadOnce   sync.Once
	loadedFont fonts
	loadErr    error
)

func loadFonts() (fonts, error) {
	loadOnce.Do(func() {
		loadedFont.regular, loadErr = parseFont(findFont(false), goregular.TTF)
		if loadErr != nil {
			return
		}
		loadedFont.bold, loadErr = parseFont(findFont(true), gobold.TTF)
	})
	return loadedFont, loadErr
}

func parseFont(path string, fallback []byte) (*truetype.Font, error) {
	if path != "" {
		if data, err := os.ReadFile(path); err == nil {
			if f, err := truetype.Parse(data); err == nil {
				return f, nil
			}
		}
	}
	f, err := truetype.Parse(fallback)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font: %w", err)
	}
	return f, nil
}

func (f fonts) face(bold bool, size float64) font.Face {
	ft := f.regular
	if bold {
		ft = f.bold
	}
	return truetype.NewFace(ft, &truetype.Options{Size: size})
}

// findFont locates a system font file, or returns "" if none is installed.
func findFont(bold bool) string {
	var candidates []string
	if runtime.GOOS == "windows" {
		winRoot := os.Getenv("WINDIR")
		if winRoot == "" {
			winRoot = `C:\Windows`
		}
		if bold {
			candidates = []string{winRoot + `\Fonts\arialbd.ttf`}
		} else {
			candidates = []string{winRoot + `\Fonts\arial.ttf`}
		}
	} else {
		if bold {
			candidates = []string{
				"/usr/share/fonts/truetype/dejavu/DejaVuSans-Bold.ttf",
				"/usr/share/fonts/TTF/DejaVuSans-Bold.ttf",
			}
		} else {
			candidates = []string{
				"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
				"/usr/share/fonts/TTF/DejaVuSans.ttf",
			}
		}
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// wrapText splits text into multiple lines to fit within maxWidth.
func wrapText(dc *gg.Context, text string, maxWidth float64) []string {
	text = strings.ReplaceAll(text, "\n", " ")
	text = strings.TrimSpace(text)

	if maxWidth <= 0 {
		return []string{text}
	}

	w, _ := dc.MeasureString(text)
	if w <= maxWidth {
		return []string{text}
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{""}
	}

	var lines []string
	currentLine := words[0]

	for _, word := range words[1:] {
		testLine := currentLine + " " + word
		tw, _ := dc.MeasureString(testLine)
		if tw > maxWidth {
			lines = append(lines, currentLine)
			currentLine = word
		} else {
			currentLine = testLine
		}
	}
	lines = append(lines, currentLine)
	return lines
}

func cellText(c *complaint.Complaint, col column) string {
	text := truncate(col.field(c), maxCellRunes)
	if text == "" {
		return "-"
	}
	return text
}

// computeRowHeights calculates the height of each row based on wrapped text.
func computeRowHeights(dc *gg.Context, complaints []complaint.Complaint, colWidths []float64) []float64 {
	_, lineH := dc.MeasureString("Ay")
	lineSpacing := lineH + 4

	heights := make([]float64, len(complaints))
	for rowIdx := range complaints {
		c := &complaints[rowIdx]
		maxLines := 1
		for i, col := range columns {
			wrapped := wrapText(dc, cellText(c, col), colWidths[i]-cellPaddingX*2)
			if len(wrapped) > maxLines {
				maxLines = len(wrapped)
			}
		}
		h := float64(maxLines)*lineSpacing + cellPaddingY*2
		if h < float64(minRowHeight) {
			h = float64(minRowHeight)
		}
		heights[rowIdx] = h
	}
	return heights
}

// Render draws the stat cards and the complaint table and returns PNG bytes.
//
// Flow:
//  1. Measure column widths from headers and cell text, capped per column
//  2. Wrap long cells and compute row heights
//  3. Draw title, stat cards, header, rows and footer
//  4. Encode as PNG
//
// Complaints are listed by ascending ID. An empty list still renders the
// cards with a single placeholder row.
func Render(stats complaint.Stats, complaints []complaint.Complaint) ([]byte, error) {
	f, err := loadFonts()
	if err != nil {
		return nil, err
	}

	list := append([]complaint.Complaint(nil), complaints...)
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })

	// ---- Step 1: Measure column widths ----
	tmpDC := gg.NewContext(1, 1)
	tmpDC.SetFontFace(f.face(true, headerFontSz))

	colWidths := make([]float64, len(columns))
	for i, col := range columns {
		w, _ := tmpDC.MeasureString(col.header)
		colWidths[i] = w + cellPaddingX*2 + 4
		if colWidths[i] < float64(minColWidth) {
			colWidths[i] = float64(minColWidth)
		}
	}

	tmpDC.SetFontFace(f.face(false, fontSize))
	for rowIdx := range list {
		c := &list[rowIdx]
		for i, col := range columns {
			w, _ := tmpDC.MeasureString(cellText(c, col))
			if needed := w + cellPaddingX*2 + 4; needed > colWidths[i] {
				colWidths[i] = needed
			}
		}
	}
	for i, col := range columns {
		if col.maxWidth > 0 && colWidths[i] > col.maxWidth {
			colWidths[i] = col.maxWidth
		}
	}

	// ---- Step 2: Row heights ----
	rowHeights := computeRowHeights(tmpDC, list, colWidths)
	if len(list) == 0 {
		rowHeights = []float64{minRowHeight}
	}

	var totalWidth float64
	for _, w := range colWidths {
		totalWidth += w
	}
	statCards := cards(stats)
	if minWidth := float64(len(statCards))*(minCardWidth+cardGap) - cardGap; totalWidth < minWidth {
		colWidths[len(colWidths)-1] += minWidth - totalWidth
		totalWidth = minWidth
	}

	var totalRowHeight float64
	for _, h := range rowHeights {
		totalRowHeight += h
	}

	canvasWidth := totalWidth + 80
	canvasHeight := float64(titlePadding) + cardsHeight + float64(headerHeight) + totalRowHeight + float64(footerPadding)

	// ---- Step 3: Draw ----
	dc := gg.NewContext(int(canvasWidth), int(canvasHeight))
	dc.SetColor(bgColor)
	dc.Clear()

	dc.SetFontFace(f.face(true, titleFontSz))
	dc.SetColor(titleColor)
	title := fmt.Sprintf("Complaint Summary  -  %s", time.Now().Format("02 Jan 2006, 03:04 PM"))
	dc.DrawStringAnchored(title, canvasWidth/2, float64(titlePadding)/2+2, 0.5, 0.5)

	tableX := 40.0
	drawCards(dc, f, statCards, tableX, float64(titlePadding), totalWidth)

	tableY := float64(titlePadding) + cardsHeight

	dc.SetColor(headerBgColor)
	dc.DrawRoundedRectangle(tableX, tableY, totalWidth, float64(headerHeight), 16)
	dc.Fill()

	dc.SetFontFace(f.face(true, headerFontSz))
	dc.SetColor(headerTextColor)
	x := tableX
	for i, col := range columns {
		dc.DrawStringAnchored(col.header, x+colWidths[i]/2, tableY+float64(headerHeight)/2, 0.5, 0.5)
		x += colWidths[i]
	}

	dc.SetFontFace(f.face(false, fontSize))
	_, lineH := dc.MeasureString("Ay")
	lineSpacing := lineH + 4
	curY := tableY + float64(headerHeight)

	if len(list) == 0 {
		dc.SetColor(rowEvenColor)
		dc.DrawRectangle(tableX, curY, totalWidth, rowHeights[0])
		dc.Fill()
		dc.SetColor(footerColor)
		dc.DrawStringAnchored("No complaints", tableX+totalWidth/2, curY+rowHeights[0]/2, 0.5, 0.5)
		curY += rowHeights[0]
	}

	for rowIdx := range list {
		c := &list[rowIdx]
		rh := rowHeights[rowIdx]

		if rowIdx%2 == 0 {
			dc.SetColor(rowEvenColor)
		} else {
			dc.SetColor(rowOddColor)
		}
		dc.DrawRectangle(tableX, curY, totalWidth, rh)
		dc.Fill()

		dc.SetColor(borderColor)
		dc.SetLineWidth(0.5)
		dc.DrawLine(tableX, curY+rh, tableX+totalWidth, curY+rh)
		dc.Stroke()

		x := tableX
		for i, col := range columns {
			if col.header == "Status" {
				dc.SetColor(statusColors[c.Status])
			} else {
				dc.SetColor(textColor)
			}
			wrapped := wrapText(dc, cellText(c, col), colWidths[i]-cellPaddingX*2)

			totalTextH := float64(len(wrapped)) * lineSpacing
			startY := curY + (rh-totalTextH)/2 + lineH
			for lineIdx, line := range wrapped {
				dc.DrawString(line, x+cellPaddingX, startY+float64(lineIdx)*lineSpacing)
			}
			x += colWidths[i]
		}

		curY += rh
	}

	dc.SetColor(borderColor)
	dc.SetLineWidth(1)
	totalTableH := float64(headerHeight) + totalRowHeight
	dc.DrawRoundedRectangle(tableX, tableY, totalWidth, totalTableH, 16)
	dc.Stroke()

	dc.SetLineWidth(0.5)
	x = tableX
	for i := 0; i < len(columns)-1; i++ {
		x += colWidths[i]
		dc.DrawLine(x, tableY+float64(headerHeight), x, tableY+totalTableH)
		dc.Stroke()
	}

	dc.SetFontFace(f.face(false, 24))
	dc.SetColor(footerColor)
	footer := fmt.Sprintf("Total: %d complaints", len(list))
	dc.DrawStringAnchored(footer, canvasWidth/2, canvasHeight-30, 0.5, 0.5)

	// ---- Step 4: Encode to PNG ----
	return encodeImage(dc.Image())
}

// drawCards lays the stat cards out evenly across width.
func drawCards(dc *gg.Context, f fonts, cs []card, x, y, width float64) {
	cardW := (width - cardGap*float64(len(cs)-1)) / float64(len(cs))
	cardH := float64(cardsHeight - 30)

	for i, c := range cs {
		cx := x + float64(i)*(cardW+cardGap)

		dc.SetColor(rowEvenColor)
		dc.DrawRoundedRectangle(cx, y, cardW, cardH, 14)
		dc.Fill()
		dc.SetColor(c.color)
		dc.DrawRectangle(cx, y+10, 6, cardH-20)
		dc.Fill()

		dc.SetFontFace(f.face(true, cardFontSz))
		dc.DrawStringAnchored(strconv.Itoa(c.value), cx+cardW/2, y+cardH*0.4, 0.5, 0.5)

		dc.SetFontFace(f.face(false, 22))
		dc.SetColor(footerColor)
		dc.DrawStringAnchored(c.label, cx+cardW/2, y+cardH*0.78, 0.5, 0.5)
	}
}

func encodeImage(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}

func truncate(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) > maxLen {
		runes := []rune(s)
		return string(runes[:maxLen]) + "…"
	}
	return s
}
