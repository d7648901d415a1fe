package scrape

import (
	"fmt"
	"net/url"
)

// Result page URLs. The site numbers pages from 0 in the query string while
// everything user-facing counts from 1.

// SearchURL builds a keyword search result URL for the given 1-based page.
func SearchURL(base, keyword string, page int, sortBy string) string {
	q := url.Values{}
	q.Set("keyword", keyword)
	q.Set("page", fmt.Sprintf("%d", page-1))
	if sortBy != "" {
		q.Set("sortBy", sortBy)
	}
	return fmt.Sprintf("%s/search?%s", base, q.Encode())
}

// ShopSearchURL builds a shop's own result listing URL.
func ShopSearchURL(base, shopID string, page int, sortBy string) string {
	q := url.Values{}
	q.Set("page", fmt.Sprintf("%d", page-1))
	if sortBy != "" {
		q.Set("sortBy", sortBy)
	}
	return fmt.Sprintf("%s/shop/%s/search?%s", base, shopID, q.Encode())
}

// CategoryURL builds a category listing URL.
func CategoryURL(base, categoryID string, page int) string {
	q := url.Values{}
	q.Set("page", fmt.Sprintf("%d", page-1))
	return fmt.Sprintf("%s/category/%s?%s", base, categoryID, q.Encode())
}

// ProductURL builds a canonical product detail URL from its id pair.
func ProductURL(base, slug, shopID, itemID string) string {
	if slug == "" {
		slug = "product"
	}
	return fmt.Sprintf("%s/%s-i.%s.%s", base, slug, shopID, itemID)
}
