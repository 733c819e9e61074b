package rate

import (
	"fmt"
	"slices"
	"strings"
)

type Currency string

// supported lists the codes published in NBP table A.
var supported = []Currency{
	"AUD", "BGN", "BRL", "CAD", "CHF", "CLP", "CNY", "CZK", "DKK", "EUR", "GBP",
	"HKD", "HUF", "IDR", "ILS", "INR", "ISK", "JPY", "KRW", "MXN", "MYR", "NOK",
	"NZD", "PHP", "RON", "SEK", "SGD", "THB", "TRY", "UAH", "USD", "XDR", "ZAR",
}

// SupportedCurrencies returns every known code in lexicographic order.
func SupportedCurrencies() []Currency {
	return slices.Clone(supported)
}

func (c Currency) String() string { return string(c) }

func (c Currency) IsSupported() bool {
	_, found := slices.BinarySearch(supported, c)
	return found
}

// ParseCurrency normalizes s and checks it against the supported set.
func ParseCurrency(s string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(s)))
	if c == "" {
		return "", fmt.Errorf("currency code is empty")
	}
	if !c.IsSupported() {
		return "", fmt.Errorf("unsupported currency %q", s)
	}
	return c, nil
}

// ParseCurrencies splits a comma separated list. An empty list yields nil,
// meaning "all supported currencies". Duplicates are dropped and the result
// is sorted.
func ParseCurrencies(list string) ([]Currency, error) {
	if strings.TrimSpace(list) == "" {
		return nil, nil
	}

	var out []Currency
	for _, part := range strings.Split(list, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		c, err := ParseCurrency(part)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}
