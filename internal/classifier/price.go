package classifier

import (
	"net/url"
	"strings"
)

// priceIndicators are commerce keywords looked for anywhere in the URL.
var priceIndicators = []string{
	"price", "cost", "amount", "total", "checkout", "cart",
	"product", "item", "buy", "purchase", "payment",
}

// IsPriceRequest reports whether the lower-cased URL mentions a commerce keyword.
func IsPriceRequest(u *url.URL) bool {
	if u == nil {
		return false
	}
	s := strings.ToLower(u.String())
	for _, indicator := range priceIndicators {
		if strings.Contains(s, indicator) {
			return true
		}
	}
	return false
}
