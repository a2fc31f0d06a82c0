package document

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"quote-service/internal/util"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Branding is the repeating header content
type Branding struct {
	CompanyName string
	Address     string
	Phone       string
	Email       string
	Website     string
	Currency    string
}

// Renderer draws a paginated document as PDF
type Renderer struct {
	layout   Layout
	branding Branding
	images   ImageSource
	logger   *zap.Logger
}

// NewRenderer creates a PDF renderer. images may be nil, in which case image frames are empty.
func NewRenderer(layout Layout, branding Branding, images ImageSource) *Renderer {
	return &Renderer{
		layout:   layout,
		branding: branding,
		images:   images,
		logger:   util.GetLogger(),
	}
}

type pdfCanvas struct {
	pdf    *fpdf.Fpdf
	tr     func(string) string
	images map[string]string
}

// Render draws doc for snapshot s
func (r *Renderer) Render(ctx context.Context, doc *Document, s *Snapshot) ([]byte, error) {
	l := r.layout
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: l.PageWidth, Ht: l.PageHeight},
	})
	pdf.SetMargins(l.MarginLeft, l.MarginTop, l.MarginRight)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCreationDate(s.IssuedAt)
	pdf.SetModificationDate(s.IssuedAt)
	pdf.SetCatalogSort(true)
	pdf.SetTitle("Quote "+s.OrderNumber, true)
	pdf.SetAuthor(r.branding.CompanyName, true)

	c := &pdfCanvas{
		pdf:    pdf,
		tr:     pdf.UnicodeTranslatorFromDescriptor(""),
		images: r.loadImages(ctx, pdf, s),
	}

	for _, page := range doc.Pages {
		pdf.AddPage()
		for _, b := range page.Blocks {
			switch b.Kind {
			case BlockHeader:
				r.drawHeader(c, b, page.Number, doc.PageCount(), s)
			case BlockParties:
				r.drawParties(c, b, s)
			case BlockTableHeader:
				r.drawTableHeader(c, b)
			case BlockRow:
				r.drawRow(c, b, s.Lines[b.Row])
			case BlockTotals:
				r.drawTotals(c, b, s)
			case BlockTerms:
				r.drawLines(c, b.Y+l.LineHeight/2, b.Lines, 8)
			case BlockSignatures:
				r.drawSignatures(c, b)
			}
		}
	}

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("failed to render quote: %w", err)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to write quote: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) contentWidth() float64 {
	return r.layout.PageWidth - r.layout.MarginLeft - r.layout.MarginRight
}

func (r *Renderer) money(v decimal.Decimal) string {
	return strings.TrimSpace(r.branding.Currency + " " + v.StringFixed(2))
}

func (r *Renderer) drawHeader(c *pdfCanvas, b Block, pageNo, pages int, s *Snapshot) {
	l := r.layout
	x := l.MarginLeft

	c.pdf.SetFont("Helvetica", "B", 16)
	c.pdf.SetXY(x, b.Y)
	c.pdf.CellFormat(r.contentWidth()/2, 8, c.tr(r.branding.CompanyName), "", 0, "L", false, 0, "")

	c.pdf.SetFont("Helvetica", "B", 12)
	c.pdf.SetXY(x+r.contentWidth()/2, b.Y)
	c.pdf.CellFormat(r.contentWidth()/2, 8, c.tr("QUOTE "+s.OrderNumber), "", 0, "R", false, 0, "")

	c.pdf.SetFont("Helvetica", "", 8)
	contact := []string{r.branding.Address, r.branding.Phone, r.branding.Email, r.branding.Website}
	y := b.Y + 9
	for _, line := range contact {
		if line == "" {
			continue
		}
		c.pdf.SetXY(x, y)
		c.pdf.CellFormat(r.contentWidth()/2, 4, c.tr(line), "", 0, "L", false, 0, "")
		y += 4
	}

	c.pdf.SetXY(x+r.contentWidth()/2, b.Y+9)
	c.pdf.CellFormat(r.contentWidth()/2, 4, s.IssuedAt.Format("2006-01-02"), "", 0, "R", false, 0, "")
	c.pdf.SetXY(x+r.contentWidth()/2, b.Y+13)
	c.pdf.CellFormat(r.contentWidth()/2, 4, fmt.Sprintf("Page %d of %d", pageNo, pages), "", 0, "R", false, 0, "")

	c.pdf.Line(x, b.Y+b.Height-2, x+r.contentWidth(), b.Y+b.Height-2)
}

func (r *Renderer) drawParties(c *pdfCanvas, b Block, s *Snapshot) {
	half := r.contentWidth() / 2
	r.drawParty(c, r.layout.MarginLeft, b.Y, half, "Customer", s.Customer)
	if s.Salesperson != nil {
		r.drawParty(c, r.layout.MarginLeft+half, b.Y, half, "Salesperson", *s.Salesperson)
	}
}

func (r *Renderer) drawParty(c *pdfCanvas, x, y, w float64, title string, p Party) {
	lh := r.layout.LineHeight
	c.pdf.SetFont("Helvetica", "B", 9)
	c.pdf.SetXY(x, y)
	c.pdf.CellFormat(w, lh, c.tr(title), "", 0, "L", false, 0, "")
	c.pdf.SetFont("Helvetica", "", 9)
	for i, line := range p.lines() {
		c.pdf.SetXY(x, y+float64(i+1)*lh)
		c.pdf.CellFormat(w, lh, c.tr(line), "", 0, "L", false, 0, "")
	}
}

// column widths: image, description, quantity, unit price, line total
func (r *Renderer) columns() [5]float64 {
	w := r.contentWidth()
	img := r.layout.ImageSize + 2
	qty, price, total := 16.0, 28.0, 28.0
	return [5]float64{img, w - img - qty - price - total, qty, price, total}
}

func (r *Renderer) drawTableHeader(c *pdfCanvas, b Block) {
	cols := r.columns()
	titles := [5]string{"", "Item", "Qty", "Unit price", "Total"}
	aligns := [5]string{"L", "L", "R", "R", "R"}

	c.pdf.SetFont("Helvetica", "B", 9)
	c.pdf.SetFillColor(235, 235, 235)
	x := r.layout.MarginLeft
	for i, w := range cols {
		c.pdf.SetXY(x, b.Y)
		c.pdf.CellFormat(w, b.Height, titles[i], "B", 0, aligns[i], true, 0, "")
		x += w
	}
}

func (r *Renderer) drawRow(c *pdfCanvas, b Block, line Line) {
	l := r.layout
	cols := r.columns()
	x := l.MarginLeft

	if name, ok := c.images[line.ImageURL]; ok {
		c.pdf.ImageOptions(name, x+1, b.Y, l.ImageSize, l.ImageSize, false, fpdf.ImageOptions{}, 0, "")
	} else {
		c.pdf.SetDrawColor(200, 200, 200)
		c.pdf.Rect(x+1, b.Y, l.ImageSize, l.ImageSize, "D")
		c.pdf.SetDrawColor(0, 0, 0)
	}
	x += cols[0]

	for i, text := range b.Lines {
		style := ""
		if i > 0 && i >= len(wrap(line.Name, l.NameChars)) {
			style = "I"
		}
		c.pdf.SetFont("Helvetica", style, 9)
		c.pdf.SetXY(x, b.Y+float64(i)*l.LineHeight)
		c.pdf.CellFormat(cols[1], l.LineHeight, c.tr(text), "", 0, "L", false, 0, "")
	}
	x += cols[1]

	c.pdf.SetFont("Helvetica", "", 9)
	values := []string{fmt.Sprintf("%d", line.Quantity), r.money(line.UnitPrice), r.money(line.LineTotal)}
	for i, v := range values {
		c.pdf.SetXY(x, b.Y)
		c.pdf.CellFormat(cols[i+2], l.LineHeight, c.tr(v), "", 0, "R", false, 0, "")
		x += cols[i+2]
	}

	c.pdf.SetDrawColor(220, 220, 220)
	c.pdf.Line(l.MarginLeft, b.Y+b.Height, l.MarginLeft+r.contentWidth(), b.Y+b.Height)
	c.pdf.SetDrawColor(0, 0, 0)
}

func (r *Renderer) drawTotals(c *pdfCanvas, b Block, s *Snapshot) {
	lh := r.layout.LineHeight
	labelX := r.layout.MarginLeft + r.contentWidth() - 70
	values := []string{r.money(s.Subtotal), r.money(s.Shipping), r.money(s.Total)}

	for i, label := range b.Lines {
		style := ""
		if i == len(b.Lines)-1 {
			style = "B"
		}
		y := b.Y + lh/2 + float64(i)*lh
		c.pdf.SetFont("Helvetica", style, 10)
		c.pdf.SetXY(labelX, y)
		c.pdf.CellFormat(40, lh, label, "", 0, "L", false, 0, "")
		c.pdf.CellFormat(30, lh, c.tr(values[i]), "", 0, "R", false, 0, "")
	}
}

func (r *Renderer) drawLines(c *pdfCanvas, y float64, lines []string, size float64) {
	c.pdf.SetFont("Helvetica", "", size)
	for i, line := range lines {
		c.pdf.SetXY(r.layout.MarginLeft, y+float64(i)*r.layout.LineHeight)
		c.pdf.CellFormat(r.contentWidth(), r.layout.LineHeight, c.tr(line), "", 0, "L", false, 0, "")
	}
}

func (r *Renderer) drawSignatures(c *pdfCanvas, b Block) {
	half := r.contentWidth() / 2
	lineY := b.Y + b.Height - 10
	c.pdf.SetFont("Helvetica", "", 9)
	for i, label := range b.Lines {
		x := r.layout.MarginLeft + float64(i)*half
		c.pdf.Line(x+5, lineY, x+half-5, lineY)
		c.pdf.SetXY(x+5, lineY+1)
		c.pdf.CellFormat(half-10, r.layout.LineHeight, c.tr(label), "", 0, "C", false, 0, "")
	}
}

// loadImages registers every distinct image of the snapshot. Images that cannot be fetched are
// skipped and drawn as empty frames.
func (r *Renderer) loadImages(ctx context.Context, pdf *fpdf.Fpdf, s *Snapshot) map[string]string {
	out := map[string]string{}
	if r.images == nil {
		return out
	}

	seen := map[string]bool{}
	for i, line := range s.Lines {
		if line.ImageURL == "" || seen[line.ImageURL] {
			continue
		}
		seen[line.ImageURL] = true

		data, imageType, err := r.images.Fetch(ctx, line.ImageURL)
		if err != nil {
			r.logger.Warn("Image unavailable, drawing placeholder",
				zap.String("url", line.ImageURL),
				zap.Error(err))
			continue
		}

		name := fmt.Sprintf("item-%d", i)
		pdf.RegisterImageOptionsReader(name, fpdf.ImageOptions{ImageType: imageType}, bytes.NewReader(data))
		if pdf.Err() {
			r.logger.Warn("Image could not be decoded, drawing placeholder",
				zap.String("url", line.ImageURL),
				zap.Error(pdf.Error()))
			pdf.ClearError()
			continue
		}
		out[line.ImageURL] = name
	}
	return out
}
