package parser

import (
	"bytes"
	"fmt"

	"github.com/shopspring/decimal"
)

// FlexDecimal accepts either a JSON string or a JSON number, the way
// exchange ingress feeds encode price/size fields.
type FlexDecimal struct {
	decimal.Decimal
}

// UnmarshalJSON implements json.Unmarshaler, stripping surrounding quotes
// before delegating to decimal.Decimal's own parser.
func (f *FlexDecimal) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) >= 2 && b[0] == '"' && b[len(b)-1] == '"' {
		b = b[1 : len(b)-1]
	}
	d, err := decimal.NewFromString(string(b))
	if err != nil {
		return fmt.Errorf("flexdecimal: %w", err)
	}
	f.Decimal = d
	return nil
}
