package scrape

import (
	"context"

	scraperr "sip/scraperworker/pkg/errors"
)

// SellerRequest identifies a shop profile page.
type SellerRequest struct {
	ShopID   string `json:"shop_id,omitempty"`
	Username string `json:"username,omitempty"`
}

// Seller is accepted on the queue for forward compatibility but has no
// scraper behind it yet. Jobs fail permanently instead of burning retries.
//
// TODO: extract the shop profile header (rating, follower count, join date)
// once the profile page selectors are mapped.
func (s *Scraper) Seller(ctx context.Context, req SellerRequest) error {
	return scraperr.NewValidation("seller", "seller scraping is not implemented")
}
