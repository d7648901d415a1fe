package scrape

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSearchURL(t *testing.T) {
	got := SearchURL("https://shopee.co.id", "sepatu lari", 1, "")
	assert.Equal(t, "https://shopee.co.id/search?keyword=sepatu+lari&page=0", got)

	got = SearchURL("https://shopee.co.id", "sepatu", 3, "sales")
	assert.Equal(t, "https://shopee.co.id/search?keyword=sepatu&page=2&sortBy=sales", got)
}

func TestShopSearchURL(t *testing.T) {
	got := ShopSearchURL("https://shopee.co.id", "12345", 2, "")
	assert.Equal(t, "https://shopee.co.id/shop/12345/search?page=1", got)
}

func TestCategoryURL(t *testing.T) {
	got := CategoryURL("https://shopee.co.id", "11042642", 1)
	assert.Equal(t, "https://shopee.co.id/category/11042642?page=0", got)
}

func TestProductURL(t *testing.T) {
	got := ProductURL("https://shopee.co.id", "Sepatu-Lari", "12345", "67890")
	assert.Equal(t, "https://shopee.co.id/Sepatu-Lari-i.12345.67890", got)

	got = ProductURL("https://shopee.co.id", "", "1", "2")
	assert.Equal(t, "https://shopee.co.id/product-i.1.2", got)
}
