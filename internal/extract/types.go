package extract

// Mode selects which page sections the card locator inspects.
type Mode string

const (
	ModeMain     Mode = "main"
	ModeFeatured Mode = "featured"
	ModeAll      Mode = "all"
)

// MaxNameLength caps extracted names before they are handed downstream.
const MaxNameLength = 200

// RawCard is the ephemeral extraction result for one product card on a
// result page. Fields that no strategy resolved stay at their zero value;
// that is never an error.
type RawCard struct {
	Index           int      `json:"index"`
	Page            int      `json:"page,omitempty"`
	ShopID          string   `json:"shop_id,omitempty"`
	ShopeeID        string   `json:"shopee_id,omitempty"`
	Name            string   `json:"name,omitempty"`
	PriceDisplay    string   `json:"price_display,omitempty"`
	Price           *int64   `json:"price,omitempty"`
	DiscountPercent *int     `json:"discount_percent,omitempty"`
	SoldCount       *int64   `json:"sold_count,omitempty"`
	Rating          *float64 `json:"rating,omitempty"`
	Location        string   `json:"location,omitempty"`
	Link            string   `json:"link,omitempty"`
	ImageURL        string   `json:"image_url,omitempty"`
}

// RawSeller is the extraction result for a product's seller section.
type RawSeller struct {
	ShopeeID string `json:"shopee_id,omitempty"`
	Username string `json:"username,omitempty"`
	Name     string `json:"name,omitempty"`
	Location string `json:"location,omitempty"`
}

// RawProduct is the extraction result for a product detail page.
type RawProduct struct {
	ShopID          string     `json:"shop_id,omitempty"`
	ShopeeID        string     `json:"shopee_id,omitempty"`
	Name            string     `json:"name,omitempty"`
	Price           *int64     `json:"price,omitempty"`
	OriginalPrice   *int64     `json:"original_price,omitempty"`
	DiscountPercent *int       `json:"discount_percent,omitempty"`
	Rating          *float64   `json:"rating,omitempty"`
	RatingCount     *int64     `json:"rating_count,omitempty"`
	SoldCount       *int64     `json:"sold_count,omitempty"`
	Stock           *int64     `json:"stock,omitempty"`
	Images          []string   `json:"images,omitempty"`
	Variants        []string   `json:"variants,omitempty"`
	Seller          *RawSeller `json:"seller,omitempty"`
	Description     string     `json:"description,omitempty"`
}

func intPtr(v int) *int           { return &v }
func int64Ptr(v int64) *int64     { return &v }
func floatPtr(v float64) *float64 { return &v }
