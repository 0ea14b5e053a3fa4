package models

import "github.com/shopspring/decimal"

func init() {
	// money goes over the wire as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true
}

// ParseMoney parses a user-entered amount; "" yields nil.
func ParseMoney(s string) (*decimal.Decimal, error) {
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
