package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// Locale-aware parsing for Indonesian marketplace listings. Prices look like
// "Rp1.234.567" (dots as thousands separators), sold counts like
// "12RB+ terjual" (rb = ribu = thousand, k accepted too).
var (
	priceRe      = regexp.MustCompile(`Rp\s*([\d.,]+)`)
	priceExactRe = regexp.MustCompile(`^Rp[\d.,]+$`)
	discountRe   = regexp.MustCompile(`-?\d+%`)
	soldRe       = regexp.MustCompile(`(?i)([\d.,]+\s*(?:rb|k)?\+?)\s*terjual`)
	shorthandRe  = regexp.MustCompile(`(?i)(\d+)(?:rb|k)\+?`)
	ratingRe     = regexp.MustCompile(`[0-5]\.\d`)
	productIDRe  = regexp.MustCompile(`-i\.(\d+)\.(\d+)`)
	slugRe       = regexp.MustCompile(`/([^/]+)-i\.\d+\.\d+`)
	regionRe     = regexp.MustCompile(`(?i)(Kota|Kab\.?)\s+\w+`)
	stockRe      = regexp.MustCompile(`(?i)Stok:\s*(\d+)`)
	ratingCntRe  = regexp.MustCompile(`(?i)([\d.,]+)\s*Penilaian`)
)

// knownCities anchor the location fallback when no location-hinting class is
// present on the card.
var knownCities = []string{
	"Jakarta", "Bandung", "Surabaya", "Tangerang", "Bekasi", "Depok",
	"Semarang", "Yogyakarta", "Medan", "Makassar", "Palembang", "Bogor",
}

// ParsePriceIDR extracts the numeric value of the first "Rp…" token in text.
// Thousands separators are stripped: "Rp1.234.567" yields 1234567.
func ParsePriceIDR(text string) (int64, bool) {
	m := priceRe.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	digits := strings.NewReplacer(".", "", ",", "", " ", "").Replace(m[1])
	if digits == "" {
		return 0, false
	}
	v, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ParseSoldCount converts a sold-count token into a unit count. The rb and k
// suffixes multiply by 1000: "12RB+ terjual" yields 12000.
func ParseSoldCount(text string) (int64, bool) {
	token := ""
	if m := soldRe.FindStringSubmatch(text); m != nil {
		token = m[1]
	} else if m := shorthandRe.FindStringSubmatch(text); m != nil {
		token = m[0]
	}
	if token == "" {
		return 0, false
	}

	upper := strings.ToUpper(token)
	multiplier := int64(1)
	if strings.Contains(upper, "RB") || strings.Contains(upper, "K") {
		multiplier = 1000
	}

	digits := strings.TrimLeft(upper, " ")
	var sb strings.Builder
	for _, r := range digits {
		if r >= '0' && r <= '9' {
			sb.WriteRune(r)
			continue
		}
		break
	}
	if sb.Len() == 0 {
		return 0, false
	}
	v, err := strconv.ParseInt(sb.String(), 10, 64)
	if err != nil {
		return 0, false
	}
	return v * multiplier, true
}

// ParseDiscount extracts a percent token such as "-40%" and returns its
// absolute value.
func ParseDiscount(text string) (int, bool) {
	m := discountRe.FindString(text)
	if m == "" {
		return 0, false
	}
	v, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(m, "-"), "%"))
	if err != nil {
		return 0, false
	}
	return v, true
}

// ParseRating extracts a 0.0-5.0 one-decimal rating from text.
func ParseRating(text string) (float64, bool) {
	m := ratingRe.FindString(text)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ParseProductURL parses shop and item ids out of a canonical product link of
// the form https://<domain>/<slug>-i.<shop_id>.<item_id>.
func ParseProductURL(link string) (shopID, itemID string, ok bool) {
	m := productIDRe.FindStringSubmatch(link)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// SlugName recovers a human-readable name from the product link slug.
func SlugName(link string) (string, bool) {
	m := slugRe.FindStringSubmatch(link)
	if m == nil {
		return "", false
	}
	return strings.ReplaceAll(m[1], "-", " "), true
}

// ParseStock extracts an explicit "Stok: n" marker from detail page text.
func ParseStock(text string) (int64, bool) {
	m := stockRe.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ParseRatingCount extracts the review count next to the "Penilaian" label.
func ParseRatingCount(text string) (int64, bool) {
	m := ratingCntRe.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	digits := strings.NewReplacer(".", "", ",", "").Replace(m[1])
	v, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// matchCityLine returns the text line around the first known city found in
// text, capped to 50 characters.
func matchCityLine(text string) (string, bool) {
	for _, city := range knownCities {
		idx := strings.Index(text, city)
		if idx < 0 {
			continue
		}
		lineStart := strings.LastIndexByte(text[:idx], '\n') + 1
		lineEnd := strings.IndexByte(text[idx:], '\n')
		if lineEnd < 0 {
			lineEnd = len(text)
		} else {
			lineEnd += idx
		}
		line := strings.TrimSpace(text[lineStart:lineEnd])
		if len(line) > 50 {
			line = line[:50]
		}
		return line, true
	}
	return "", false
}

// matchRegionPrefix matches the generic "Kota …" / "Kab. …" administrative
// region pattern.
func matchRegionPrefix(text string) (string, bool) {
	m := regionRe.FindString(text)
	if m == "" {
		return "", false
	}
	return m, true
}
