package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"quote-service/internal/audit"
	"quote-service/internal/models"

	"github.com/shopspring/decimal"
)

var messageTemplate = template.Must(template.New("message").Funcs(template.FuncMap{
	"status": func(s models.Status) string { return audit.StatusLabel(string(s)) },
}).Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Helvetica, Arial, sans-serif; color: #222;">
<h2>{{.Company}}</h2>
{{if .StatusChange}}<p>Your quote <strong>{{.OrderNumber}}</strong> is now <strong>{{status .NewStatus}}</strong>{{if .OldStatus}} (was {{status .OldStatus}}){{end}}.</p>
{{else}}<p>Please find your quote <strong>{{.OrderNumber}}</strong> below.</p>
{{end}}{{if .Link}}<p><a href="{{.Link}}">Download quote {{.OrderNumber}}</a>. This link expires on {{.LinkExpires}}.</p>
{{else}}<table cellpadding="4" style="border-collapse: collapse;">
<tr><th align="left">Item</th><th align="right">Qty</th><th align="right">Total</th></tr>
{{range .Items}}<tr><td>{{.Name}}</td><td align="right">{{.Quantity}}</td><td align="right">{{.LineTotal}}</td></tr>
{{end}}<tr><td colspan="2">Shipping</td><td align="right">{{.Shipping}}</td></tr>
<tr><td colspan="2"><strong>Total</strong></td><td align="right"><strong>{{.Total}}</strong></td></tr>
</table>
{{end}}{{if .PaymentTerms}}<p>Payment: {{.PaymentTerms}}</p>
{{end}}{{if .DeliveryTerms}}<p>Delivery: {{.DeliveryTerms}}</p>
{{end}}</body>
</html>
`))

type itemView struct {
	Name      string
	Quantity  int
	LineTotal string
}

type messageView struct {
	Company       string
	OrderNumber   string
	StatusChange  bool
	OldStatus     models.Status
	NewStatus     models.Status
	Link          string
	LinkExpires   string
	Items         []itemView
	Shipping      string
	Total         string
	PaymentTerms  string
	DeliveryTerms string
}

func (d *Dispatcher) render(req *Request) (subject, body string, err error) {
	money := func(v decimal.Decimal) string {
		return strings.TrimSpace(d.currency + " " + v.StringFixed(2))
	}

	view := messageView{
		Company:       d.company,
		OrderNumber:   req.Order.OrderNumber,
		StatusChange:  req.Kind == KindStatusChanged,
		OldStatus:     req.OldStatus,
		NewStatus:     req.Order.Status,
		Link:          req.Link,
		Shipping:      money(req.Order.ShippingCost),
		Total:         money(req.Order.Total),
		PaymentTerms:  req.Order.PaymentTerms,
		DeliveryTerms: req.Order.DeliveryTerms,
	}
	if req.Link != "" {
		view.LinkExpires = req.LinkExpires.Format("2006-01-02 15:04 MST")
	}
	for _, it := range req.Items {
		view.Items = append(view.Items, itemView{Name: it.Name, Quantity: it.Quantity, LineTotal: money(it.LineTotal)})
	}

	var buf bytes.Buffer
	if err := messageTemplate.Execute(&buf, view); err != nil {
		return "", "", fmt.Errorf("failed to render message: %w", err)
	}

	switch req.Kind {
	case KindStatusChanged:
		subject = fmt.Sprintf("Quote %s: %s", req.Order.OrderNumber, audit.StatusLabel(string(req.Order.Status)))
	default:
		subject = fmt.Sprintf("Your quote %s", req.Order.OrderNumber)
	}
	if d.company != "" {
		subject = d.company + " - " + subject
	}
	return subject, buf.String(), nil
}
