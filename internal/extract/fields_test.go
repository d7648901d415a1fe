package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCardHTML = `<div id="card" class="col-xs-2-4">
	<a href="/Sepatu-Lari-Pria-Ringan-i.12345.67890?sp_atk=tok">
		<img src="https://down-id.img.susercontent.com/file/abc123" alt="Sepatu Lari Pria Ringan Original">
		<img src="https://deo.shopeemobile.com/shopee/modules-federation/live/0/flag.png" alt="mall label">
		<div class="line-clamp-2">Sepatu Lari Pria Ringan Original</div>
		<span class="bg-shopee-pink">-40%</span>
		<div class="truncate-price">Rp 150.000</div>
		<img alt="rating-star-full" src="star.svg"><span>4.9</span>
		<div><span>2RB+ terjual</span></div>
		<div class="shop-location">Kota Bandung</div>
	</a>
</div>`

func TestCardFullExtraction(t *testing.T) {
	doc := docFromHTML(t, sampleCardHTML)
	sel := doc.Find("#card")
	require.Equal(t, 1, sel.Length())

	card := Card(sel, 0, "https://shopee.co.id")

	assert.Equal(t, "Sepatu Lari Pria Ringan Original", card.Name)
	assert.Equal(t, "Rp150.000", card.PriceDisplay)
	require.NotNil(t, card.Price)
	assert.Equal(t, int64(150000), *card.Price)
	require.NotNil(t, card.DiscountPercent)
	assert.Equal(t, 40, *card.DiscountPercent)
	require.NotNil(t, card.SoldCount)
	assert.Equal(t, int64(2000), *card.SoldCount)
	require.NotNil(t, card.Rating)
	assert.InDelta(t, 4.9, *card.Rating, 0.001)
	assert.Equal(t, "Kota Bandung", card.Location)
	assert.Equal(t, "https://shopee.co.id/Sepatu-Lari-Pria-Ringan-i.12345.67890?sp_atk=tok", card.Link)
	assert.Equal(t, "https://down-id.img.susercontent.com/file/abc123", card.ImageURL)
	assert.Equal(t, "12345", card.ShopID)
	assert.Equal(t, "67890", card.ShopeeID)
}

func TestExtractNameAltFallback(t *testing.T) {
	// No clamped element, so the name comes from the first substantial image
	// alt. Badge alts and short alts never qualify.
	html := `<div id="card">
		<img src="x.png" alt="flash sale label text here">
		<img src="y.png" alt="short">
		<img src="https://cf.susercontent.com/file/z" alt="Kemeja Flanel Lengan Panjang">
	</div>`
	doc := docFromHTML(t, html)

	name := ExtractName(doc.Find("#card"))
	assert.Equal(t, "Kemeja Flanel Lengan Panjang", name)
}

func TestExtractNameAltFallbackRuneBoundary(t *testing.T) {
	// Exactly ten runes qualifies, counted in runes rather than bytes.
	html := `<div id="card"><img src="x.png" alt="SepatuAnak"></div>`
	doc := docFromHTML(t, html)
	assert.Equal(t, "SepatuAnak", ExtractName(doc.Find("#card")))

	// Nine runes (ten bytes) does not.
	html = `<div id="card"><img src="x.png" alt="Béju Anak"><a href="/Tas-Ransel-i.55.66"></a></div>`
	doc = docFromHTML(t, html)
	assert.Equal(t, "Tas Ransel", ExtractName(doc.Find("#card")))
}

func TestExtractNameSlugFallback(t *testing.T) {
	html := `<div id="card"><a href="/Tas-Ransel-Anak-i.55.66"><img src="x" alt="icon"></a></div>`
	doc := docFromHTML(t, html)

	name := ExtractName(doc.Find("#card"))
	assert.Equal(t, "Tas Ransel Anak", name)
}

func TestExtractNameTextBlockFallback(t *testing.T) {
	html := `<div id="card">
		<span>Rp25.000</span>
		<span>500 terjual</span>
		<span>Botol Minum Stainless 1 Liter</span>
	</div>`
	doc := docFromHTML(t, html)

	name := ExtractName(doc.Find("#card"))
	assert.Equal(t, "Botol Minum Stainless 1 Liter", name)
}

func TestExtractNameTruncated(t *testing.T) {
	long := strings.Repeat("panjang ", 40)
	doc := docFromHTML(t, `<div id="card"><div class="line-clamp-2">`+long+`</div></div>`)

	card := Card(doc.Find("#card"), 0, "https://shopee.co.id")
	assert.LessOrEqual(t, len([]rune(card.Name)), MaxNameLength)
}

func TestExtractPriceRegexFallback(t *testing.T) {
	doc := docFromHTML(t, `<div id="card"><div>Mulai dari Rp 1.234.567 saja</div></div>`)

	display, price := ExtractPrice(doc.Find("#card"))
	assert.Equal(t, "Rp1.234.567", display)
	require.NotNil(t, price)
	assert.Equal(t, int64(1234567), *price)
}

func TestExtractDiscountAriaLabel(t *testing.T) {
	doc := docFromHTML(t, `<div id="card"><span aria-label="diskon 35%"></span></div>`)

	pct := ExtractDiscount(doc.Find("#card"))
	require.NotNil(t, pct)
	assert.Equal(t, 35, *pct)
}

func TestExtractSoldPrefersInnermostElement(t *testing.T) {
	// The outer container text also contains "terjual" plus unrelated
	// numbers; the tighter element wins.
	html := `<div id="card">
		<div>Rp10.000 kualitas 100 persen <span>12rb terjual</span></div>
	</div>`
	doc := docFromHTML(t, html)

	sold := ExtractSold(doc.Find("#card"))
	require.NotNil(t, sold)
	assert.Equal(t, int64(12000), *sold)
}

func TestExtractImageSkipsBadges(t *testing.T) {
	html := `<div id="card">
		<img src="https://cf.susercontent.com/file/overlay1" alt="promotion overlay">
		<img src="https://cf.susercontent.com/file/real" alt="product photo">
	</div>`
	doc := docFromHTML(t, html)

	src := ExtractImage(doc.Find("#card"))
	assert.Equal(t, "https://cf.susercontent.com/file/real", src)
}

func TestExtractLinkCardIsAnchor(t *testing.T) {
	doc := docFromHTML(t, `<a id="card" href="/Produk-i.9.9">x</a>`)

	link := ExtractLink(doc.Find("#card"), "https://shopee.co.id")
	assert.Equal(t, "https://shopee.co.id/Produk-i.9.9", link)
}

func TestCardMissingFieldsStayZero(t *testing.T) {
	doc := docFromHTML(t, `<div id="card"><span>???</span></div>`)

	card := Card(doc.Find("#card"), 3, "https://shopee.co.id")
	assert.Equal(t, 3, card.Index)
	assert.Empty(t, card.Name)
	assert.Nil(t, card.Price)
	assert.Nil(t, card.DiscountPercent)
	assert.Nil(t, card.SoldCount)
	assert.Nil(t, card.Rating)
	assert.Empty(t, card.Link)
}
