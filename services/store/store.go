package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a lookup matches no record.
var ErrNotFound = errors.New("record not found")

// PriceDirection classifies the latest price movement of a product.
type PriceDirection string

const (
	PriceUp     PriceDirection = "up"
	PriceDown   PriceDirection = "down"
	PriceStable PriceDirection = "stable"
)

// Product is the persisted product record. FirstSeenAt is written once at
// insert and never touched again; everything else follows the freshest
// scrape.
type Product struct {
	ID              int64     `db:"id" json:"id"`
	ShopeeID        string    `db:"shopee_id" json:"shopee_id"`
	ShopID          string    `db:"shop_id" json:"shop_id"`
	SellerID        *int64    `db:"seller_id" json:"seller_id,omitempty"`
	Name            string    `db:"name" json:"name"`
	Price           *int64    `db:"price" json:"price,omitempty"`
	OriginalPrice   *int64    `db:"original_price" json:"original_price,omitempty"`
	DiscountPercent *int      `db:"discount_percent" json:"discount_percent,omitempty"`
	SoldCount       *int64    `db:"sold_count" json:"sold_count,omitempty"`
	Rating          *float64  `db:"rating" json:"rating,omitempty"`
	RatingCount     *int64    `db:"rating_count" json:"rating_count,omitempty"`
	Stock           *int64    `db:"stock" json:"stock,omitempty"`
	SalesVelocity   *float64  `db:"sales_velocity" json:"sales_velocity,omitempty"`
	Location        string    `db:"location" json:"location,omitempty"`
	Link            string    `db:"link" json:"link,omitempty"`
	ImageURL        string    `db:"image_url" json:"image_url,omitempty"`
	Description     string    `db:"description" json:"description,omitempty"`
	FirstSeenAt     time.Time `db:"first_seen_at" json:"first_seen_at"`
	LastSeenAt      time.Time `db:"last_seen_at" json:"last_seen_at"`
}

// Seller is the persisted shop record.
type Seller struct {
	ID          int64     `db:"id" json:"id"`
	ShopID      string    `db:"shop_id" json:"shop_id"`
	Username    string    `db:"username" json:"username,omitempty"`
	Name        string    `db:"name" json:"name"`
	Location    string    `db:"location" json:"location,omitempty"`
	FirstSeenAt time.Time `db:"first_seen_at" json:"first_seen_at"`
	LastSeenAt  time.Time `db:"last_seen_at" json:"last_seen_at"`
}

// PriceSnapshot is one appended observation in a product's price history.
type PriceSnapshot struct {
	ID              int64     `db:"id" json:"id"`
	ProductID       int64     `db:"product_id" json:"product_id"`
	Price           int64     `db:"price" json:"price"`
	OriginalPrice   *int64    `db:"original_price" json:"original_price,omitempty"`
	DiscountPercent *int      `db:"discount_percent" json:"discount_percent,omitempty"`
	RecordedAt      time.Time `db:"recorded_at" json:"recorded_at"`
}

// Store persists products, sellers and price history.
type Store interface {
	// UpsertProduct inserts or refreshes a product keyed by its shopee id.
	// Reports whether a new record was created.
	UpsertProduct(ctx context.Context, p *Product) (bool, error)

	// GetProduct looks a product up by shopee id.
	GetProduct(ctx context.Context, shopeeID string) (*Product, error)

	// RecordPrice appends one price observation to the product's history.
	RecordPrice(ctx context.Context, productID, price int64, originalPrice *int64, discountPercent *int) error

	// PriceHistory returns the newest snapshots first, capped at limit.
	PriceHistory(ctx context.Context, productID int64, limit int) ([]PriceSnapshot, error)

	// LatestPriceDirection compares the two newest snapshots.
	LatestPriceDirection(ctx context.Context, productID int64) (PriceDirection, error)

	// UpsertSeller inserts or refreshes a seller keyed by its shop id and
	// returns the record id.
	UpsertSeller(ctx context.Context, s *Seller) (int64, error)

	// LinkSeller attaches a seller to a product.
	LinkSeller(ctx context.Context, productID, sellerID int64) error

	// Close releases the underlying database handle.
	Close() error
}
