package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateFormat is the layout for calendar dates wherever they travel as
// strings. Zero-padded ISO dates compare lexicographically in chronological
// order, so range checks and month bucketing operate on the raw strings.
const DateFormat = "2006-01-02"

type Product struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Cost  decimal.Decimal `json:"cost"`
}

// Margin is derived from price and cost, never stored.
func (p Product) Margin() decimal.Decimal {
	return p.Price.Sub(p.Cost)
}

type ProductCreateRequest struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Cost  decimal.Decimal `json:"cost"`
}

// SaleItem is one product line inside a sale. Price and cost are snapshots
// taken at transaction time; later catalog edits never touch them.
type SaleItem struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	PriceAtSale decimal.Decimal `json:"price_at_sale"`
	CostAtSale  decimal.Decimal `json:"cost_at_sale"`
}

// Sale is one completed market transaction. Date is the calendar day
// (DateFormat) used for filtering and grouping; CreatedAt carries the full
// timestamp and is used for ordering and display. TotalRevenue, TotalCost
// and Profit are always recomputed from the item set and market cost before
// a sale is persisted.
type Sale struct {
	ID           string          `json:"id"`
	Date         string          `json:"date"`
	CreatedAt    time.Time       `json:"created_at"`
	MarketName   string          `json:"market_name"`
	Items        []SaleItem      `json:"items"`
	MarketCost   decimal.Decimal `json:"market_cost"`
	TotalRevenue decimal.Decimal `json:"total_revenue"`
	TotalCost    decimal.Decimal `json:"total_cost"`
	Profit       decimal.Decimal `json:"profit"`
}

// MonthKey returns the "YYYY-MM" bucket key of the sale date. A date too
// short to carry a month (possible only through out-of-band store edits)
// buckets under itself rather than panicking mid-report.
func (s Sale) MonthKey() string {
	if len(s.Date) < 7 {
		return s.Date
	}
	return s.Date[:7]
}

// SaleCreateRequest is the sale-builder input: a cart mapping product id to
// desired quantity. Entries with quantity <= 0 are ignored, not errors.
type SaleCreateRequest struct {
	Date       string          `json:"date"`
	MarketName string          `json:"market_name"`
	MarketCost decimal.Decimal `json:"market_cost"`
	Cart       map[string]int  `json:"cart"`
}

// SaleUpdateRequest is the ledger-editor input: the full revised item list
// (quantity, price and cost editable per line) and the revised market cost.
// Lines whose quantity ends up <= 0 are dropped before saving.
type SaleUpdateRequest struct {
	Items      []SaleItem      `json:"items"`
	MarketCost decimal.Decimal `json:"market_cost"`
}

type Setting struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type SettingPutRequest struct {
	Value string `json:"value"`
}

// Convenience defaults for repeat visits, persisted as ordinary settings.
const (
	SettingLastMarketName = "lastMarketName"
	SettingLastSaleDate   = "lastSaleDate"
)

const (
	FilterAll    = "all"
	FilterYear   = "year"
	FilterCustom = "custom"
)

// ReportFilter selects the sales a report covers. Start and End are
// DateFormat dates, inclusive, and only meaningful for FilterCustom.
type ReportFilter struct {
	Mode  string `json:"mode"`
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

type ReportTotals struct {
	Revenue decimal.Decimal `json:"revenue"`
	Cost    decimal.Decimal `json:"cost"`
	Profit  decimal.Decimal `json:"profit"`
}

// MonthlyBucket aggregates all sales sharing a calendar year+month.
type MonthlyBucket struct {
	Month   string          `json:"month"`
	Count   int             `json:"count"`
	Revenue decimal.Decimal `json:"revenue"`
	Cost    decimal.Decimal `json:"cost"`
	Profit  decimal.Decimal `json:"profit"`
}

// SalesReport is the aggregate the document-rendering layer consumes.
// Monthly buckets are ordered most recent month first.
type SalesReport struct {
	Filter      ReportFilter    `json:"filter"`
	Sales       []Sale          `json:"sales"`
	Totals      ReportTotals    `json:"totals"`
	Monthly     []MonthlyBucket `json:"monthly"`
	GeneratedAt time.Time       `json:"generated_at"`
}
