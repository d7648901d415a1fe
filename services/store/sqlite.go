package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS sellers (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	shop_id       TEXT NOT NULL UNIQUE,
	username      TEXT NOT NULL DEFAULT '',
	name          TEXT NOT NULL DEFAULT '',
	location      TEXT NOT NULL DEFAULT '',
	first_seen_at TIMESTAMP NOT NULL,
	last_seen_at  TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS products (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	shopee_id        TEXT NOT NULL UNIQUE,
	shop_id          TEXT NOT NULL DEFAULT '',
	seller_id        INTEGER REFERENCES sellers(id),
	name             TEXT NOT NULL DEFAULT '',
	price            INTEGER,
	original_price   INTEGER,
	discount_percent INTEGER,
	sold_count       INTEGER,
	rating           REAL,
	rating_count     INTEGER,
	stock            INTEGER,
	sales_velocity   REAL,
	location         TEXT NOT NULL DEFAULT '',
	link             TEXT NOT NULL DEFAULT '',
	image_url        TEXT NOT NULL DEFAULT '',
	description      TEXT NOT NULL DEFAULT '',
	first_seen_at    TIMESTAMP NOT NULL,
	last_seen_at     TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS product_prices (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	product_id       INTEGER NOT NULL REFERENCES products(id),
	price            INTEGER NOT NULL,
	original_price   INTEGER,
	discount_percent INTEGER,
	recorded_at      TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_product_prices_product
	ON product_prices(product_id, recorded_at);
`

// SQLiteStore implements Store on an embedded sqlite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens the database and ensures the schema exists.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// The sqlite driver serializes writes; one connection avoids lock churn.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// UpsertProduct inserts or refreshes a product keyed by its shopee id.
func (s *SQLiteStore) UpsertProduct(ctx context.Context, p *Product) (bool, error) {
	now := time.Now().UTC()
	p.LastSeenAt = now

	var existing Product
	err := s.db.GetContext(ctx, &existing,
		`SELECT id, first_seen_at FROM products WHERE shopee_id = ?`, p.ShopeeID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		p.FirstSeenAt = now
		res, err := s.db.NamedExecContext(ctx, `
			INSERT INTO products (
				shopee_id, shop_id, seller_id, name, price, original_price,
				discount_percent, sold_count, rating, rating_count, stock,
				sales_velocity, location, link, image_url, description,
				first_seen_at, last_seen_at
			) VALUES (
				:shopee_id, :shop_id, :seller_id, :name, :price, :original_price,
				:discount_percent, :sold_count, :rating, :rating_count, :stock,
				:sales_velocity, :location, :link, :image_url, :description,
				:first_seen_at, :last_seen_at
			)`, p)
		if err != nil {
			return false, fmt.Errorf("insert product %s: %w", p.ShopeeID, err)
		}
		p.ID, _ = res.LastInsertId()
		return true, nil

	case err != nil:
		return false, fmt.Errorf("look up product %s: %w", p.ShopeeID, err)
	}

	// first_seen_at is immutable across updates.
	p.ID = existing.ID
	p.FirstSeenAt = existing.FirstSeenAt
	_, err = s.db.NamedExecContext(ctx, `
		UPDATE products SET
			shop_id = :shop_id,
			seller_id = COALESCE(:seller_id, seller_id),
			name = :name,
			price = :price,
			original_price = :original_price,
			discount_percent = :discount_percent,
			sold_count = :sold_count,
			rating = :rating,
			rating_count = :rating_count,
			stock = :stock,
			sales_velocity = :sales_velocity,
			location = :location,
			link = :link,
			image_url = :image_url,
			description = :description,
			last_seen_at = :last_seen_at
		WHERE id = :id`, p)
	if err != nil {
		return false, fmt.Errorf("update product %s: %w", p.ShopeeID, err)
	}
	return false, nil
}

// GetProduct looks a product up by shopee id.
func (s *SQLiteStore) GetProduct(ctx context.Context, shopeeID string) (*Product, error) {
	var p Product
	err := s.db.GetContext(ctx, &p, `SELECT * FROM products WHERE shopee_id = ?`, shopeeID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get product %s: %w", shopeeID, err)
	}
	return &p, nil
}

// RecordPrice appends one price observation to the product's history.
func (s *SQLiteStore) RecordPrice(ctx context.Context, productID, price int64, originalPrice *int64, discountPercent *int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO product_prices (product_id, price, original_price, discount_percent, recorded_at)
		VALUES (?, ?, ?, ?, ?)`,
		productID, price, originalPrice, discountPercent, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("record price for product %d: %w", productID, err)
	}
	return nil
}

// PriceHistory returns the newest snapshots first.
func (s *SQLiteStore) PriceHistory(ctx context.Context, productID int64, limit int) ([]PriceSnapshot, error) {
	if limit < 1 {
		limit = 50
	}
	var snapshots []PriceSnapshot
	err := s.db.SelectContext(ctx, &snapshots, `
		SELECT * FROM product_prices
		WHERE product_id = ?
		ORDER BY recorded_at DESC, id DESC
		LIMIT ?`, productID, limit)
	if err != nil {
		return nil, fmt.Errorf("read price history for product %d: %w", productID, err)
	}
	return snapshots, nil
}

// LatestPriceDirection compares the two newest snapshots. A product with
// fewer than two observations is stable by definition.
func (s *SQLiteStore) LatestPriceDirection(ctx context.Context, productID int64) (PriceDirection, error) {
	snapshots, err := s.PriceHistory(ctx, productID, 2)
	if err != nil {
		return "", err
	}
	if len(snapshots) < 2 {
		return PriceStable, nil
	}
	switch {
	case snapshots[0].Price > snapshots[1].Price:
		return PriceUp, nil
	case snapshots[0].Price < snapshots[1].Price:
		return PriceDown, nil
	default:
		return PriceStable, nil
	}
}

// UpsertSeller inserts or refreshes a seller keyed by its shop id.
func (s *SQLiteStore) UpsertSeller(ctx context.Context, seller *Seller) (int64, error) {
	now := time.Now().UTC()
	seller.LastSeenAt = now

	var existing Seller
	err := s.db.GetContext(ctx, &existing,
		`SELECT id, first_seen_at FROM sellers WHERE shop_id = ?`, seller.ShopID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		seller.FirstSeenAt = now
		res, err := s.db.NamedExecContext(ctx, `
			INSERT INTO sellers (shop_id, username, name, location, first_seen_at, last_seen_at)
			VALUES (:shop_id, :username, :name, :location, :first_seen_at, :last_seen_at)`,
			seller)
		if err != nil {
			return 0, fmt.Errorf("insert seller %s: %w", seller.ShopID, err)
		}
		seller.ID, _ = res.LastInsertId()
		return seller.ID, nil

	case err != nil:
		return 0, fmt.Errorf("look up seller %s: %w", seller.ShopID, err)
	}

	seller.ID = existing.ID
	seller.FirstSeenAt = existing.FirstSeenAt
	_, err = s.db.NamedExecContext(ctx, `
		UPDATE sellers SET
			username = :username,
			name = :name,
			location = :location,
			last_seen_at = :last_seen_at
		WHERE id = :id`, seller)
	if err != nil {
		return 0, fmt.Errorf("update seller %s: %w", seller.ShopID, err)
	}
	return seller.ID, nil
}

// LinkSeller attaches a seller to a product.
func (s *SQLiteStore) LinkSeller(ctx context.Context, productID, sellerID int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE products SET seller_id = ? WHERE id = ?`, sellerID, productID)
	if err != nil {
		return fmt.Errorf("link seller %d to product %d: %w", sellerID, productID, err)
	}
	return nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
