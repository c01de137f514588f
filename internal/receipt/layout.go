package receipt

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/noah-isme/slowdrip-api/internal/pricing"
)

// Page geometry in points.
const (
	PageWidth     = 340.0
	MinHeight     = 600.0
	BaseHeight    = 180.0
	PerItemHeight = 120.0
	WrapWidth     = 270.0

	headerHeight = 80.0
	marginX      = 20.0
	detailX      = 28.0
	optionsX     = 36.0
	bottomMargin = 24.0

	// compactAfter is the line count above which the compact font scale applies.
	compactAfter = 5
)

// Font is a Helvetica face at a point size.
type Font struct {
	Bold bool
	Size float64
}

// Color is an RGB triple.
type Color struct{ R, G, B int }

var (
	colorBrand   = Color{0x8d, 0x55, 0x24}
	colorInk     = Color{0x33, 0x33, 0x33}
	colorBand    = Color{0xf6, 0xe9, 0xd7}
	colorRule    = Color{0xe0, 0xc9, 0xa6}
	colorTagline = Color{0xbf, 0xa1, 0x6b}
)

// Metrics measures rendered text.
type Metrics interface {
	Width(text string, font Font) float64
}

// Branding is the shop identity printed on receipts.
type Branding struct {
	Name    string
	Tagline string
}

func (b Branding) name() string {
	if strings.TrimSpace(b.Name) == "" {
		return "Slow Drip"
	}
	return b.Name
}

func (b Branding) footer() string {
	if strings.TrimSpace(b.Tagline) == "" {
		return b.name()
	}
	return b.name() + " · " + b.Tagline
}

// Text is a positioned string; Y is the baseline.
type Text struct {
	X, Y  float64
	Value string
	Font  Font
	Color Color
}

// Rule is a horizontal divider.
type Rule struct {
	X1, X2, Y float64
}

// ItemBlock is the laid-out form of one order line.
type ItemBlock struct {
	Title    Text
	Quantity Text
	Options  []Text
	Total    Text
	Rule     Rule
}

// Layout is the complete, deterministic receipt geometry. Download and
// preview both draw from it.
type Layout struct {
	Width, Height float64
	Band          float64
	Compact       bool
	Brand         Text
	Caption       Text
	Date          Text
	DateRule      Rule
	Section       Text
	Items         []ItemBlock
	GrandTotal    Text
	Thanks        Text
	Tagline       Text
}

type scale struct {
	title, body, total            Font
	titleStep, bodyStep, wrapStep float64
	totalStep, ruleStep           float64
}

var (
	regularScale = scale{
		title: Font{Bold: true, Size: 12}, body: Font{Size: 12}, total: Font{Bold: true, Size: 12},
		titleStep: 16, bodyStep: 14, wrapStep: 14, totalStep: 20, ruleStep: 10,
	}
	compactScale = scale{
		title: Font{Bold: true, Size: 10}, body: Font{Size: 9}, total: Font{Bold: true, Size: 10},
		titleStep: 13, bodyStep: 12, wrapStep: 11, totalStep: 16, ruleStep: 8,
	}
)

// ComputeLayout positions every element of the receipt for lines. The page
// height is max(MinHeight, BaseHeight+n*PerItemHeight), grown further when
// the wrapped content runs past it, so nothing is ever cut off.
func ComputeLayout(lines []Line, timestamp string, brand Branding, m Metrics) Layout {
	sc := regularScale
	compact := len(lines) > compactAfter
	if compact {
		sc = compactScale
	}
	l := Layout{Width: PageWidth, Band: headerHeight, Compact: compact}

	l.Brand = centered(brand.name(), 38, Font{Bold: true, Size: 20}, colorBrand, m)
	l.Caption = centered("Order Receipt", 58, Font{Size: 10}, colorBrand, m)

	y := 95.0
	l.Date = Text{X: marginX, Y: y, Value: "Date: " + timestamp, Font: Font{Bold: true, Size: 12}, Color: colorInk}
	y += 22
	l.DateRule = Rule{X1: marginX, X2: PageWidth - marginX, Y: y}
	y += 18
	l.Section = Text{X: marginX, Y: y, Value: "Order Items", Font: Font{Bold: true, Size: 13}, Color: colorInk}
	y += 18

	l.Items = make([]ItemBlock, 0, len(lines))
	for i, line := range lines {
		var blk ItemBlock
		blk.Title = Text{X: marginX, Y: y, Value: "Item " + strconv.Itoa(i+1) + ": " + line.Name, Font: sc.title, Color: colorBrand}
		y += sc.titleStep
		blk.Quantity = Text{X: detailX, Y: y, Value: "Quantity: " + strconv.Itoa(line.Quantity), Font: sc.body, Color: colorInk}
		y += sc.bodyStep
		if opts := OptionLines(line.Selection); len(opts) > 0 {
			wrapped := Wrap(strings.Join(opts, "\n"), sc.body, WrapWidth, m)
			for j, w := range wrapped {
				blk.Options = append(blk.Options, Text{X: optionsX, Y: y + float64(j)*sc.wrapStep, Value: w, Font: sc.body, Color: colorInk})
			}
			y += float64(len(wrapped)) * sc.wrapStep
		}
		total := "Total: $" + pricing.Format(line.LineTotal)
		blk.Total = Text{X: PageWidth - marginX - m.Width(total, sc.total), Y: y, Value: total, Font: sc.total, Color: colorBrand}
		y += sc.totalStep
		blk.Rule = Rule{X1: marginX, X2: PageWidth - marginX, Y: y}
		y += sc.ruleStep
		l.Items = append(l.Items, blk)
	}

	y += 10
	l.GrandTotal = Text{X: marginX, Y: y, Value: "Grand Total: $" + pricing.Format(Total(lines)), Font: Font{Bold: true, Size: 14}, Color: colorBrand}
	y += 24
	l.Thanks = centered("Thank you for your order!", y, Font{Size: 11}, colorInk, m)
	y += 16
	l.Tagline = centered(brand.footer(), y, Font{Size: 9}, colorTagline, m)

	l.Height = max(MinHeight, BaseHeight+float64(len(lines))*PerItemHeight, y+bottomMargin)
	return l
}

func centered(value string, y float64, font Font, color Color, m Metrics) Text {
	return Text{X: (PageWidth - m.Width(value, font)) / 2, Y: y, Value: value, Font: font, Color: color}
}

// Wrap breaks text into lines no wider than width. Newlines always break;
// words longer than a line are split between runes.
func Wrap(text string, font Font, width float64, m Metrics) []string {
	var out []string
	for _, para := range strings.Split(text, "\n") {
		line := ""
		for _, word := range strings.Fields(para) {
			for m.Width(word, font) > width {
				cut := fit(word, font, width, m)
				if line != "" {
					out = append(out, line)
					line = ""
				}
				out = append(out, word[:cut])
				word = word[cut:]
			}
			switch {
			case line == "":
				line = word
			case m.Width(line+" "+word, font) <= width:
				line += " " + word
			default:
				out = append(out, line)
				line = word
			}
		}
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

// fit returns the byte length of the longest prefix of word that fits,
// never less than one rune.
func fit(word string, font Font, width float64, m Metrics) int {
	_, first := utf8.DecodeRuneInString(word)
	cut := first
	for i := first; i < len(word); {
		_, size := utf8.DecodeRuneInString(word[i:])
		if m.Width(word[:i+size], font) > width {
			break
		}
		i += size
		cut = i
	}
	return cut
}
