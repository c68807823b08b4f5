package report

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-pdf/fpdf"
)

// ErrNoFont is returned when PDF export has no usable Unicode font.
var ErrNoFont = errors.New("pdf font not configured")

const (
	fontFamily = "body"
	lineHeight = 8.0
	margin     = 15.0
)

// PDFRenderer draws right-to-left A4 pages with a TrueType font that covers
// Arabic presentation forms.
type PDFRenderer struct {
	font []byte
	size float64
}

func NewPDFRenderer(fontPath string) (*PDFRenderer, error) {
	if strings.TrimSpace(fontPath) == "" {
		return nil, ErrNoFont
	}
	b, err := os.ReadFile(fontPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoFont, err)
	}
	return &PDFRenderer{font: b, size: 13}, nil
}

func (p *PDFRenderer) Render(w io.Writer, doc Document) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(doc.Title, true)
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, margin)
	pdf.AddUTF8FontFromBytes(fontFamily, "", p.font)
	pdf.AddPage()

	pageW, _ := pdf.GetPageSize()
	width := pageW - 2*margin

	pdf.SetFont(fontFamily, "", p.size+5)
	p.line(pdf, doc.Title, "C")
	pdf.Ln(lineHeight / 2)

	pdf.SetFont(fontFamily, "", p.size)
	for _, f := range doc.Fields {
		p.line(pdf, f.Label+": "+f.Value, "R")
	}
	pdf.Ln(lineHeight / 2)

	p.line(pdf, labelErrors+":", "R")
	if len(doc.Errors) == 0 {
		p.line(pdf, labelNoErrors, "R")
	}
	for _, e := range doc.Errors {
		p.line(pdf, "• "+e, "R")
	}

	if strings.TrimSpace(doc.Notes) != "" {
		pdf.Ln(lineHeight / 2)
		p.line(pdf, labelNotes+":", "R")
		for _, l := range wrap(doc.Notes, width, func(s string) float64 { return pdf.GetStringWidth(Visual(s)) }) {
			p.line(pdf, l, "R")
		}
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return pdf.Output(w)
}

func (p *PDFRenderer) line(pdf *fpdf.Fpdf, text, align string) {
	pdf.CellFormat(0, lineHeight, Visual(text), "", 1, align, false, 0, "")
}

// wrap splits text into lines no wider than width as measured by measure.
// A word wider than a line is broken between runes.
func wrap(text string, width float64, measure func(string) float64) []string {
	var lines []string
	for _, para := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}
		cur := ""
		for _, word := range words {
			for _, w := range breakWord(word, width, measure) {
				switch {
				case cur == "":
					cur = w
				case measure(cur+" "+w) > width:
					lines = append(lines, cur)
					cur = w
				default:
					cur += " " + w
				}
			}
		}
		lines = append(lines, cur)
	}
	return lines
}

func breakWord(word string, width float64, measure func(string) float64) []string {
	if measure(word) <= width {
		return []string{word}
	}
	var parts []string
	var cur []rune
	for _, r := range word {
		if len(cur) > 0 && measure(string(append(cur, r))) > width {
			parts = append(parts, string(cur))
			cur = nil
		}
		cur = append(cur, r)
	}
	return append(parts, string(cur))
}
