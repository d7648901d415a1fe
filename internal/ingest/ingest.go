package ingest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"sip/scraperworker/internal/extract"
	"sip/scraperworker/internal/metrics"
	"sip/scraperworker/logger"
	scraperr "sip/scraperworker/pkg/errors"
	"sip/scraperworker/services/store"
)

// Engine normalizes raw extraction output into persisted records. One bad
// record never fails a batch; it is counted and the rest proceed.
type Engine struct {
	store store.Store
	log   *logger.Logger
	now   func() time.Time
}

// NewEngine creates an ingest engine over the given store.
func NewEngine(st store.Store) *Engine {
	return &Engine{
		store: st,
		log:   logger.ForComponent("ingest"),
		now:   time.Now,
	}
}

// Result summarizes one ingested batch.
type Result struct {
	Processed int `json:"processed"`
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// Cards ingests result-page cards. Cards without a resolvable product id
// cannot be keyed and are skipped.
func (e *Engine) Cards(ctx context.Context, cards []extract.RawCard) (Result, error) {
	var result Result
	var firstErr error

	for _, card := range cards {
		if card.ShopeeID == "" {
			result.Skipped++
			continue
		}

		created, err := e.upsertCard(ctx, card)
		if err != nil {
			result.Failed++
			if firstErr == nil {
				firstErr = err
			}
			e.log.WithError(err).Warn().Str("shopee_id", card.ShopeeID).Msg("card ingest failed")
			continue
		}

		result.Processed++
		if created {
			result.Created++
			metrics.RecordsUpserted.WithLabelValues("insert").Inc()
		} else {
			result.Updated++
			metrics.RecordsUpserted.WithLabelValues("update").Inc()
		}
	}

	if firstErr != nil && result.Processed == 0 {
		return result, scraperr.NewStore("search", "entire batch failed", firstErr)
	}
	return result, nil
}

func (e *Engine) upsertCard(ctx context.Context, card extract.RawCard) (bool, error) {
	record := &store.Product{
		ShopeeID:        card.ShopeeID,
		ShopID:          card.ShopID,
		Name:            card.Name,
		Price:           card.Price,
		DiscountPercent: card.DiscountPercent,
		SoldCount:       card.SoldCount,
		Rating:          card.Rating,
		Location:        card.Location,
		Link:            card.Link,
		ImageURL:        card.ImageURL,
	}
	record.SalesVelocity = e.salesVelocity(ctx, card.ShopeeID, card.SoldCount)

	created, err := e.store.UpsertProduct(ctx, record)
	if err != nil {
		return false, err
	}
	if card.Price != nil {
		if err := e.store.RecordPrice(ctx, record.ID, *card.Price, nil, card.DiscountPercent); err != nil {
			return created, err
		}
	}
	return created, nil
}

// Product ingests a full detail-page record, including its seller.
func (e *Engine) Product(ctx context.Context, p extract.RawProduct) (Result, error) {
	var result Result
	if p.ShopeeID == "" {
		result.Skipped++
		return result, scraperr.NewValidation("product", "detail record has no product id")
	}

	record := &store.Product{
		ShopeeID:        p.ShopeeID,
		ShopID:          p.ShopID,
		Name:            p.Name,
		Price:           p.Price,
		OriginalPrice:   p.OriginalPrice,
		DiscountPercent: p.DiscountPercent,
		SoldCount:       p.SoldCount,
		Rating:          p.Rating,
		RatingCount:     p.RatingCount,
		Stock:           p.Stock,
		Description:     p.Description,
	}
	if len(p.Images) > 0 {
		record.ImageURL = p.Images[0]
	}
	record.SalesVelocity = e.salesVelocity(ctx, p.ShopeeID, p.SoldCount)

	created, err := e.store.UpsertProduct(ctx, record)
	if err != nil {
		return result, scraperr.NewStore("product", "upsert detail record", err)
	}
	result.Processed++
	if created {
		result.Created++
		metrics.RecordsUpserted.WithLabelValues("insert").Inc()
	} else {
		result.Updated++
		metrics.RecordsUpserted.WithLabelValues("update").Inc()
	}

	if p.Price != nil {
		if err := e.store.RecordPrice(ctx, record.ID, *p.Price, p.OriginalPrice, p.DiscountPercent); err != nil {
			return result, scraperr.NewStore("product", "append price snapshot", err)
		}
	}

	if p.Seller != nil && p.ShopID != "" {
		if err := e.linkSeller(ctx, record.ID, p.ShopID, *p.Seller); err != nil {
			// Seller linkage is best effort; the product record stands.
			e.log.WithError(err).Warn().Str("shop_id", p.ShopID).Msg("seller link failed")
		}
	}
	return result, nil
}

func (e *Engine) linkSeller(ctx context.Context, productID int64, shopID string, raw extract.RawSeller) error {
	sellerID, err := e.store.UpsertSeller(ctx, &store.Seller{
		ShopID:   shopID,
		Username: raw.Username,
		Name:     raw.Name,
		Location: raw.Location,
	})
	if err != nil {
		return fmt.Errorf("upsert seller: %w", err)
	}
	return e.store.LinkSeller(ctx, productID, sellerID)
}

// salesVelocity computes units sold per day since the product was first
// observed, rounded to two decimals. A product younger than a day counts as
// one day old.
func (e *Engine) salesVelocity(ctx context.Context, shopeeID string, sold *int64) *float64 {
	if sold == nil {
		return nil
	}

	days := 1.0
	existing, err := e.store.GetProduct(ctx, shopeeID)
	if err == nil {
		elapsed := e.now().Sub(existing.FirstSeenAt).Hours() / 24
		days = math.Max(1, math.Floor(elapsed))
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil
	}

	v := math.Round(float64(*sold)/days*100) / 100
	return &v
}
