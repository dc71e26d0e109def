package domain

import "time"

const (
	UncategorizedLabel = "Uncategorized"
	DefaultUnit        = "pcs"
	DateLayout         = "2006-01-02"
)

type Product struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	Category    string    `json:"category"`
	Price       float64   `json:"price"`
	Stock       int       `json:"stock"`
	Unit        string    `json:"unit"`
	DefaultQty  int       `json:"default_qty"`
	Photo       *string   `json:"photo,omitempty"`
	ExpiryDate  *string   `json:"expiry_date,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ProductInput carries create and full-update fields. Price and Stock are
// pointers so that an absent value can be told apart from zero.
type ProductInput struct {
	Name        string   `json:"name"`
	Description *string  `json:"description"`
	Category    string   `json:"category"`
	Price       *float64 `json:"price"`
	Stock       *int     `json:"stock"`
	Unit        string   `json:"unit"`
	DefaultQty  *int     `json:"defaultQty"`
	Photo       *string  `json:"photo"`
	ExpiryDate  *string  `json:"expiry_date"`
}

type Category struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type Sale struct {
	ID       int64      `json:"id"`
	Total    float64    `json:"total"`
	Subtotal float64    `json:"subtotal"`
	Discount float64    `json:"discount"`
	Date     time.Time  `json:"date"`
	Items    []SaleItem `json:"items"`
}

type SaleItem struct {
	ID        int64   `json:"id"`
	SaleID    int64   `json:"sale_id"`
	ProductID *int64  `json:"product_id"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
	Name      string  `json:"name"`
	Unit      string  `json:"unit"`
}

// SaleLineInput is one cart line submitted at checkout. ReservedQty is the
// part of Quantity already taken off the shelf through stock adjustments
// while the cart was open.
type SaleLineInput struct {
	ProductID   int64   `json:"product_id"`
	Quantity    int     `json:"quantity"`
	ReservedQty int     `json:"reserved_qty,omitempty"`
	Price       float64 `json:"price,omitempty"`
	Name        string  `json:"name,omitempty"`
	Unit        string  `json:"unit,omitempty"`
}

type SaleInput struct {
	Items    []SaleLineInput `json:"items"`
	Subtotal float64         `json:"subtotal"`
	Discount float64         `json:"discount"`
	Total    float64         `json:"total"`
}

// PricedLine is a sale line after the store resolved the product row.
type PricedLine struct {
	ProductID int64
	Quantity  int
	Decrement int
	Price     float64
	Name      string
	Unit      string
}

type SalesSummary struct {
	From              string  `json:"from"`
	To                string  `json:"to"`
	TotalSales        int     `json:"total_sales"`
	TotalRevenue      float64 `json:"total_revenue"`
	AverageOrderValue float64 `json:"average_order_value"`
	TodaysSales       int     `json:"todays_sales"`
	WeeklyChange      float64 `json:"weekly_change"`
}

type DailySales struct {
	Day       string  `json:"day"`
	Orders    int     `json:"orders"`
	ItemsSold int     `json:"items_sold"`
	Subtotal  float64 `json:"subtotal"`
	Discount  float64 `json:"discount"`
	Revenue   float64 `json:"revenue"`
}

type CategoryStock struct {
	Category     string  `json:"category"`
	ProductCount int     `json:"product_count"`
	TotalStock   int     `json:"total_stock"`
	StockValue   float64 `json:"stock_value"`
}

type TopSeller struct {
	ProductID *int64  `json:"product_id"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	Revenue   float64 `json:"revenue"`
}

type ExpiryAlert struct {
	Product
	DaysUntilExpiry int  `json:"days_until_expiry"`
	Expired         bool `json:"expired"`
}

type ExpiryReport struct {
	Expired      []ExpiryAlert `json:"expired"`
	ExpiringSoon []ExpiryAlert `json:"expiring_soon"`
	WindowDays   int           `json:"window_days"`
}

type ImportResult struct {
	TotalRows int `json:"total_rows"`
	Created   int `json:"created"`
	Updated   int `json:"updated"`
}
