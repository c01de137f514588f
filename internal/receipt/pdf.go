package receipt

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/go-pdf/fpdf"
)

const (
	fontFamily = "Helvetica"
	// ContentType is the media type of rendered receipts.
	ContentType = "application/pdf"
)

// Document is a rendered receipt.
type Document struct {
	Bytes    []byte
	Preview  string
	Filename string
	Layout   Layout
}

// Filename derives the download name from the order timestamp.
func Filename(timestamp string) string {
	safe := strings.Map(func(r rune) rune {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return r
		}
		return '_'
	}, timestamp)
	return "order_" + safe + ".pdf"
}

// pdfMetrics measures text with the core font tables of pdf.
type pdfMetrics struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
}

func (m pdfMetrics) Width(text string, font Font) float64 {
	m.pdf.SetFont(fontFamily, font.style(), font.Size)
	return m.pdf.GetStringWidth(m.tr(text))
}

func (f Font) style() string {
	if f.Bold {
		return "B"
	}
	return ""
}

func render(lines []Line, timestamp string, brand Branding, tr func(string) string, created time.Time) (Document, error) {
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           fpdf.SizeType{Wd: PageWidth, Ht: MinHeight},
	})
	pdf.SetMargins(marginX, marginX, marginX)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetTitle("Order Receipt", true)
	pdf.SetCreator(brand.name(), true)
	pdf.SetCreationDate(created)
	pdf.SetModificationDate(created)

	layout := ComputeLayout(lines, timestamp, brand, pdfMetrics{pdf: pdf, tr: tr})
	pdf.AddPageFormat("P", fpdf.SizeType{Wd: layout.Width, Ht: layout.Height})
	draw(pdf, tr, layout)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return Document{}, fmt.Errorf("receipt: write pdf: %w", err)
	}
	data := buf.Bytes()
	return Document{
		Bytes:    data,
		Preview:  "data:" + ContentType + ";base64," + base64.StdEncoding.EncodeToString(data),
		Filename: Filename(timestamp),
		Layout:   layout,
	}, nil
}

func draw(pdf *fpdf.Fpdf, tr func(string) string, l Layout) {
	pdf.SetFillColor(colorBand.R, colorBand.G, colorBand.B)
	pdf.Rect(0, 0, l.Width, l.Band, "F")

	text := func(t Text) {
		pdf.SetFont(fontFamily, t.Font.style(), t.Font.Size)
		pdf.SetTextColor(t.Color.R, t.Color.G, t.Color.B)
		pdf.Text(t.X, t.Y, tr(t.Value))
	}
	pdf.SetDrawColor(colorRule.R, colorRule.G, colorRule.B)
	rule := func(r Rule) { pdf.Line(r.X1, r.Y, r.X2, r.Y) }

	text(l.Brand)
	text(l.Caption)
	text(l.Date)
	rule(l.DateRule)
	text(l.Section)
	for _, blk := range l.Items {
		text(blk.Title)
		text(blk.Quantity)
		for _, o := range blk.Options {
			text(o)
		}
		text(blk.Total)
		rule(blk.Rule)
	}
	text(l.GrandTotal)
	text(l.Thanks)
	text(l.Tagline)
}
