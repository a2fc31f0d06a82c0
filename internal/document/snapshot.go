package document

import (
	"time"

	"quote-service/internal/models"

	"github.com/shopspring/decimal"
)

// Party is a customer or salesperson block on the quote
type Party struct {
	Name    string
	Company string
	Email   string
	Phone   string
}

func (p Party) lines() []string {
	var out []string
	for _, v := range []string{p.Name, p.Company, p.Email, p.Phone} {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// PartyFromProfile builds a party from a profile
func PartyFromProfile(p *models.Profile) Party {
	return Party{Name: p.DisplayName, Company: p.Company, Email: p.Email, Phone: p.Phone}
}

// Line is a resolved order item
type Line struct {
	Name      string
	Variants  models.Variants
	ImageURL  string
	Quantity  int
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
}

// Snapshot is a fully resolved order ready for rendering
type Snapshot struct {
	OrderNumber   string
	Status        models.Status
	IssuedAt      time.Time
	Customer      Party
	Salesperson   *Party
	Lines         []Line
	Subtotal      decimal.Decimal
	Shipping      decimal.Decimal
	Total         decimal.Decimal
	PaymentTerms  string
	DeliveryTerms string
	ValidityTerms string
	Notes         string
}

// ProductLookup resolves catalog products by ID
type ProductLookup func(id int64) (*models.Product, bool)

// NewSnapshot resolves an order and its items. Items referencing a product use the product's
// name and image; ad-hoc items use their custom name and image.
func NewSnapshot(order *models.Order, items []models.OrderItem, products ProductLookup, customer Party, salesperson *Party) *Snapshot {
	s := &Snapshot{
		OrderNumber:   order.OrderNumber,
		Status:        order.Status,
		IssuedAt:      order.UpdatedAt,
		Customer:      customer,
		Salesperson:   salesperson,
		Subtotal:      order.Subtotal,
		Shipping:      order.ShippingCost,
		Total:         order.Total,
		PaymentTerms:  order.PaymentTerms,
		DeliveryTerms: order.DeliveryTerms,
		ValidityTerms: order.ValidityTerms,
		Notes:         order.Notes,
	}

	for _, item := range items {
		line := Line{
			Name:      item.CustomName,
			Variants:  item.SelectedVariants,
			ImageURL:  item.CustomImage,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			LineTotal: item.LineTotal(),
		}
		if item.ProductID != nil && products != nil {
			if p, ok := products(*item.ProductID); ok {
				if line.Name == "" {
					line.Name = p.Name
				}
				if line.ImageURL == "" {
					line.ImageURL = p.ImageURL
				}
			}
		}
		if line.Name == "" {
			line.Name = "Item"
		}
		s.Lines = append(s.Lines, line)
	}
	return s
}
