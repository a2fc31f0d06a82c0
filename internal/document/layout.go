package document

import (
	"fmt"
	"sort"
	"strings"
)

// BlockKind identifies what a block on a page renders
type BlockKind string

const (
	BlockHeader      BlockKind = "header"
	BlockParties     BlockKind = "parties"
	BlockTableHeader BlockKind = "table_header"
	BlockRow         BlockKind = "row"
	BlockTotals      BlockKind = "totals"
	BlockTerms       BlockKind = "terms"
	BlockSignatures  BlockKind = "signatures"
)

// Block is a positioned piece of content. Row is the index into Snapshot.Lines for row blocks
// and -1 otherwise.
type Block struct {
	Kind   BlockKind
	Y      float64
	Height float64
	Lines  []string
	Row    int
}

// Page holds the blocks placed on one page
type Page struct {
	Number int
	Blocks []Block
}

// Document is the paginated layout of a quote
type Document struct {
	Pages []Page
}

// PageCount is the number of pages
func (d *Document) PageCount() int {
	return len(d.Pages)
}

// RowCount is the number of item rows across all pages
func (d *Document) RowCount() int {
	n := 0
	for _, p := range d.Pages {
		for _, b := range p.Blocks {
			if b.Kind == BlockRow {
				n++
			}
		}
	}
	return n
}

// Structure summarizes the document as rows per page, for comparing regenerations
func (d *Document) Structure() []int {
	out := make([]int, len(d.Pages))
	for i, p := range d.Pages {
		for _, b := range p.Blocks {
			if b.Kind == BlockRow {
				out[i]++
			}
		}
	}
	return out
}

// Layout holds page geometry in millimetres
type Layout struct {
	PageWidth    float64
	PageHeight   float64
	MarginTop    float64
	MarginBottom float64
	MarginLeft   float64
	MarginRight  float64
	HeaderHeight float64
	LineHeight   float64
	ImageSize    float64
	SignatureGap float64
	// NameChars and TermsChars are wrap widths in characters
	NameChars  int
	TermsChars int
}

// DefaultLayout is an A4 portrait layout
func DefaultLayout() Layout {
	return Layout{
		PageWidth:    210,
		PageHeight:   297,
		MarginTop:    12,
		MarginBottom: 15,
		MarginLeft:   12,
		MarginRight:  12,
		HeaderHeight: 30,
		LineHeight:   5,
		ImageSize:    18,
		SignatureGap: 35,
		NameChars:    46,
		TermsChars:   100,
	}
}

// UsableBottom is the lowest y a block may reach
func (l Layout) UsableBottom() float64 {
	return l.PageHeight - l.MarginBottom
}

// RowHeight is max(image height, text lines × line height)
func (l Layout) RowHeight(textLines int) float64 {
	text := float64(textLines) * l.LineHeight
	if l.ImageSize > text {
		return l.ImageSize
	}
	return text
}

// RowLines returns the text lines of an item row: the wrapped name, then one line per variant
func (l Layout) RowLines(line Line) []string {
	out := wrap(line.Name, l.NameChars)
	names := make([]string, 0, len(line.Variants))
	for name := range line.Variants {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		out = append(out, fmt.Sprintf("%s: %s", name, line.Variants[name]))
	}
	return out
}

type paginator struct {
	layout Layout
	doc    *Document
	cursor float64
}

// Paginate places every block of the quote. Before each block, if it would cross the usable
// bottom, a new page is started and the header re-emitted; item rows also repeat the table header.
func (l Layout) Paginate(s *Snapshot, legal []string) *Document {
	p := &paginator{layout: l, doc: &Document{}}
	p.newPage()

	parties := partyLines(s)
	p.place(Block{Kind: BlockParties, Lines: parties, Height: float64(len(parties))*l.LineHeight + l.LineHeight, Row: -1}, false)
	p.place(p.tableHeader(), false)

	for i, line := range s.Lines {
		lines := l.RowLines(line)
		p.place(Block{Kind: BlockRow, Lines: lines, Height: l.RowHeight(len(lines)), Row: i}, true)
	}

	totals := []string{"Subtotal", "Shipping", "Total"}
	p.place(Block{Kind: BlockTotals, Lines: totals, Height: float64(len(totals))*l.LineHeight + l.LineHeight, Row: -1}, false)

	terms := termLines(s, legal, l.TermsChars)
	p.place(Block{Kind: BlockTerms, Lines: terms, Height: float64(len(terms))*l.LineHeight + l.LineHeight, Row: -1}, false)

	p.place(Block{Kind: BlockSignatures, Lines: []string{"Customer", "Salesperson"}, Height: l.SignatureGap, Row: -1}, false)

	return p.doc
}

func (p *paginator) tableHeader() Block {
	return Block{Kind: BlockTableHeader, Height: p.layout.LineHeight + 2, Row: -1}
}

func (p *paginator) newPage() {
	p.doc.Pages = append(p.doc.Pages, Page{Number: len(p.doc.Pages) + 1})
	p.cursor = p.layout.MarginTop
	p.emit(Block{Kind: BlockHeader, Height: p.layout.HeaderHeight, Row: -1})
}

func (p *paginator) emit(b Block) {
	b.Y = p.cursor
	page := &p.doc.Pages[len(p.doc.Pages)-1]
	page.Blocks = append(page.Blocks, b)
	p.cursor += b.Height
}

// place emits b, breaking the page first when b does not fit. A block that does not fit even on
// an empty page is emitted anyway so pagination always terminates.
func (p *paginator) place(b Block, repeatTableHeader bool) {
	page := p.doc.Pages[len(p.doc.Pages)-1]
	if p.cursor+b.Height > p.layout.UsableBottom() && len(page.Blocks) > 1 {
		p.newPage()
		if repeatTableHeader {
			p.emit(p.tableHeader())
		}
	}
	p.emit(b)
}

func partyLines(s *Snapshot) []string {
	lines := append([]string{"Customer"}, s.Customer.lines()...)
	if s.Salesperson != nil {
		lines = append(lines, "Salesperson")
		lines = append(lines, s.Salesperson.lines()...)
	}
	return lines
}

func termLines(s *Snapshot, legal []string, width int) []string {
	var out []string
	add := func(label, text string) {
		if strings.TrimSpace(text) == "" {
			return
		}
		out = append(out, wrap(label+": "+text, width)...)
	}
	add("Payment", s.PaymentTerms)
	add("Delivery", s.DeliveryTerms)
	add("Validity", s.ValidityTerms)
	add("Notes", s.Notes)
	for _, t := range legal {
		out = append(out, wrap(t, width)...)
	}
	return out
}

// wrap breaks text on word boundaries into lines of at most width characters.
// Words longer than width are split.
func wrap(text string, width int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{""}
	}
	if width <= 0 {
		return []string{strings.Join(words, " ")}
	}

	var (
		lines   []string
		current string
	)
	for _, w := range words {
		for len([]rune(w)) > width {
			if current != "" {
				lines = append(lines, current)
				current = ""
			}
			r := []rune(w)
			lines = append(lines, string(r[:width]))
			w = string(r[width:])
		}
		switch {
		case current == "":
			current = w
		case len([]rune(current))+1+len([]rune(w)) <= width:
			current += " " + w
		default:
			lines = append(lines, current)
			current = w
		}
	}
	if current != "" {
		lines = append(lines, current)
	}
	return lines
}
