package document

import (
	"context"
	"fmt"
	"time"

	"quote-service/internal/util"

	"go.uber.org/zap"
)

// DefaultLegalTerms is printed on every quote after the order's own terms
var DefaultLegalTerms = []string{
	"This quote is not an invoice. Prices are valid for the stated validity period only.",
	"Production starts after written approval of this quote and of the final artwork.",
	"Colours may vary slightly between screen proofs and printed goods.",
	"Delivery dates are estimates and start counting from artwork approval.",
}

// Result is a generated quote
type Result struct {
	Document *Document
	PDF      []byte
}

// Generator lays out and renders quotes
type Generator struct {
	layout   Layout
	renderer *Renderer
	legal    []string
	logger   *zap.Logger
}

// NewGenerator creates a generator. An empty legal slice uses DefaultLegalTerms.
func NewGenerator(layout Layout, renderer *Renderer, legal []string) *Generator {
	if len(legal) == 0 {
		legal = DefaultLegalTerms
	}
	return &Generator{
		layout:   layout,
		renderer: renderer,
		legal:    legal,
		logger:   util.GetLogger(),
	}
}

// Generate paginates and renders s. Identical snapshots produce the same page and row structure.
func (g *Generator) Generate(ctx context.Context, s *Snapshot) (*Result, error) {
	ctx, span := util.StartSpan(ctx, "Generator.Generate")
	defer span.End()

	start := time.Now()
	doc := g.layout.Paginate(s, g.legal)

	pdf, err := g.renderer.Render(ctx, doc, s)
	if err != nil {
		return nil, fmt.Errorf("failed to render quote %s: %w", s.OrderNumber, err)
	}

	g.logger.Debug("Quote rendered",
		zap.String("order_number", s.OrderNumber),
		zap.Int("pages", doc.PageCount()),
		zap.Int("rows", doc.RowCount()),
		zap.Duration("took", time.Since(start)))

	return &Result{Document: doc, PDF: pdf}, nil
}
