package pricing

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/sudo-init-do/homeswift/internal/model"
)

//go:embed catalog.json
var catalogJSON []byte

var (
	ErrUnknownItem     = errors.New("unknown service item")
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrEmptyQuote      = errors.New("at least one service item is required")
)

// CommissionRate is the platform's share of the customer price.
var CommissionRate = decimal.RequireFromString("0.10")

type Item struct {
	Category               string          `json:"category"`
	ServiceType            string          `json:"service_type"`
	ItemDescription        string          `json:"item_description"`
	ProviderBasePrice      decimal.Decimal `json:"provider_base_price"`
	CustomerDisplayPrice   decimal.Decimal `json:"customer_display_price"`
	ColorSurchargeProvider decimal.Decimal `json:"color_surcharge_provider"`
	ColorSurchargeCustomer decimal.Decimal `json:"color_surcharge_customer"`
	WhiteApplicable        bool            `json:"white_applicable"`
}

// Line is one requested item. White applies the colour surcharge when the
// catalog row allows it.
type Line struct {
	Category    string `json:"category" validate:"required"`
	ServiceType string `json:"service_type" validate:"required"`
	Quantity    int    `json:"quantity" validate:"gte=1"`
	White       bool   `json:"white"`
}

type Quote struct {
	Items          []model.ServiceItem `json:"items"`
	CustomerTotal  decimal.Decimal     `json:"total_customer_paid"`
	ProviderPayout decimal.Decimal     `json:"total_provider_payout"`
	Commission     decimal.Decimal     `json:"total_commission_earned"`
}

type Catalog struct {
	items []Item
	index map[string]int
}

func key(category, serviceType string) string {
	return strings.ToLower(strings.TrimSpace(category)) + "|" + strings.ToLower(strings.TrimSpace(serviceType))
}

// Load parses the embedded catalog.
func Load() (*Catalog, error) {
	return Parse(catalogJSON)
}

func Parse(data []byte) (*Catalog, error) {
	var items []Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parse pricing catalog: %w", err)
	}
	c := &Catalog{items: items, index: make(map[string]int, len(items))}
	for i, it := range items {
		k := key(it.Category, it.ServiceType)
		if _, dup := c.index[k]; dup {
			return nil, fmt.Errorf("duplicate catalog entry %q / %q", it.Category, it.ServiceType)
		}
		c.index[k] = i
	}
	return c, nil
}

// Items returns a copy of the catalog rows, optionally limited to one category.
func (c *Catalog) Items(category string) []Item {
	out := make([]Item, 0, len(c.items))
	for _, it := range c.items {
		if category != "" && !strings.EqualFold(it.Category, category) {
			continue
		}
		out = append(out, it)
	}
	return out
}

func (c *Catalog) Find(category, serviceType string) (Item, bool) {
	i, ok := c.index[key(category, serviceType)]
	if !ok {
		return Item{}, false
	}
	return c.items[i], true
}

// Quote prices lines against the catalog. Amounts are rounded to cents half-up.
func (c *Catalog) Quote(lines []Line) (*Quote, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyQuote
	}
	q := &Quote{Items: make([]model.ServiceItem, 0, len(lines))}
	for _, l := range lines {
		if l.Quantity < 1 {
			return nil, fmt.Errorf("%s / %s: %w", l.Category, l.ServiceType, ErrInvalidQuantity)
		}
		it, ok := c.Find(l.Category, l.ServiceType)
		if !ok {
			return nil, fmt.Errorf("%s / %s: %w", l.Category, l.ServiceType, ErrUnknownItem)
		}
		customer, provider := it.CustomerDisplayPrice, it.ProviderBasePrice
		white := l.White && it.WhiteApplicable
		if white {
			customer = customer.Add(it.ColorSurchargeCustomer)
			provider = provider.Add(it.ColorSurchargeProvider)
		}
		qty := decimal.NewFromInt(int64(l.Quantity))
		customer = customer.Mul(qty).Round(2)
		provider = provider.Mul(qty).Round(2)

		q.Items = append(q.Items, model.ServiceItem{
			Category:        it.Category,
			ServiceType:     it.ServiceType,
			ItemDescription: it.ItemDescription,
			Quantity:        l.Quantity,
			White:           white,
			CustomerPrice:   customer,
			ProviderPrice:   provider,
		})
		q.CustomerTotal = q.CustomerTotal.Add(customer)
		q.ProviderPayout = q.ProviderPayout.Add(provider)
	}
	q.Commission = q.CustomerTotal.Sub(q.ProviderPayout)
	return q, nil
}

// ProviderPrice derives a provider base price from a customer price.
func ProviderPrice(customer decimal.Decimal) decimal.Decimal {
	return customer.Mul(decimal.NewFromInt(1).Sub(CommissionRate)).Round(0)
}
