package models

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Logical field names resolved by a ColumnMapping
const (
	FieldSymbol   = "symbol"
	FieldQuantity = "quantity"
	FieldPrice    = "price"
	FieldValue    = "value"
	FieldChange   = "change"
)

// totalRowMarker identifies an authoritative portfolio-level total row
const totalRowMarker = "total"

// ColumnMapping maps each logical field to the sheet header aliases that may
// carry it, in priority order
type ColumnMapping map[string][]string

// DefaultColumnMapping returns the alias sets accepted out of the box
func DefaultColumnMapping() ColumnMapping {
	return ColumnMapping{
		FieldSymbol:   {"symbol", "ticker", "stock"},
		FieldQuantity: {"quantity", "shares", "amount"},
		FieldPrice:    {"price", "current_price", "unit_price"},
		FieldValue:    {"value", "market_value", "total_value"},
		FieldChange:   {"change", "daily_change", "day_change"},
	}
}

// Merge overlays configured alias lists onto the mapping. Only fields present
// in the overrides are replaced; an override applies to a known field only.
func (m ColumnMapping) Merge(overrides map[string][]string) ColumnMapping {
	out := make(ColumnMapping, len(m))
	for field, aliases := range m {
		out[field] = aliases
	}
	for field, aliases := range overrides {
		if _, known := out[field]; known && len(aliases) > 0 {
			normalized := make([]string, 0, len(aliases))
			for _, a := range aliases {
				normalized = append(normalized, NormalizeHeader(a))
			}
			out[field] = normalized
		}
	}
	return out
}

// NormalizeHeader lowercases and trims a header cell; comparisons are always
// on the normalized form so header position and casing never matter
func NormalizeHeader(h string) string {
	return strings.ToLower(strings.TrimSpace(h))
}

// FieldIndex maps logical fields to resolved column positions
type FieldIndex map[string]int

// Resolve locates each logical field's column in the given header row. The
// highest-priority alias present wins; fields with no matching header are
// absent from the index.
func (m ColumnMapping) Resolve(headers []string) FieldIndex {
	byName := make(map[string]int, len(headers))
	for i, h := range headers {
		name := NormalizeHeader(h)
		if _, seen := byName[name]; !seen && name != "" {
			byName[name] = i
		}
	}

	idx := make(FieldIndex)
	for field, aliases := range m {
		for _, alias := range aliases {
			if col, ok := byName[alias]; ok {
				idx[field] = col
				break
			}
		}
	}
	return idx
}

// HasRequired reports whether the index resolves symbol, quantity and price
func (f FieldIndex) HasRequired() bool {
	for _, field := range []string{FieldSymbol, FieldQuantity, FieldPrice} {
		if _, ok := f[field]; !ok {
			return false
		}
	}
	return true
}

// MissingRequired lists required fields absent from the index
func (f FieldIndex) MissingRequired() []string {
	var missing []string
	for _, field := range []string{FieldSymbol, FieldQuantity, FieldPrice} {
		if _, ok := f[field]; !ok {
			missing = append(missing, field)
		}
	}
	return missing
}

// Cell returns the trimmed cell for a field, or "" when the field is unmapped
// or the row is shorter than the resolved column
func (f FieldIndex) Cell(row []string, field string) string {
	col, ok := f[field]
	if !ok || col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}

// IsTotalRow reports whether the row is the sheet's portfolio-level total row
func (f FieldIndex) IsTotalRow(row []string) bool {
	return strings.EqualFold(f.Cell(row, FieldSymbol), totalRowMarker)
}

// TotalRowValue extracts the authoritative total from a total row, nil when
// the value cell is absent or not numeric
func TotalRowValue(row []string, idx FieldIndex) *decimal.Decimal {
	raw := idx.Cell(row, FieldValue)
	if raw == "" {
		return nil
	}
	d, err := parseCell(raw)
	if err != nil {
		return nil
	}
	return &d
}

// ParsePosition converts one sheet row into a Position. The returned error
// describes why the row must be skipped; callers count skips and continue.
func ParsePosition(row []string, idx FieldIndex) (*Position, error) {
	symbol := strings.ToUpper(idx.Cell(row, FieldSymbol))
	if symbol == "" {
		return nil, fmt.Errorf("empty symbol")
	}

	quantity, err := parseCell(idx.Cell(row, FieldQuantity))
	if err != nil {
		return nil, fmt.Errorf("quantity: %w", err)
	}
	price, err := parseCell(idx.Cell(row, FieldPrice))
	if err != nil {
		return nil, fmt.Errorf("price: %w", err)
	}
	if quantity.IsNegative() || price.IsNegative() {
		return nil, fmt.Errorf("negative quantity or price")
	}

	value := decimal.Zero
	if raw := idx.Cell(row, FieldValue); raw != "" {
		if value, err = parseCell(raw); err != nil {
			return nil, fmt.Errorf("value: %w", err)
		}
	} else {
		value = quantity.Mul(price)
	}
	if !value.IsPositive() {
		return nil, fmt.Errorf("non-positive value")
	}

	change := decimal.Zero
	if raw := idx.Cell(row, FieldChange); raw != "" {
		if parsed, err := parseCell(raw); err == nil {
			change = parsed
		}
	}

	return &Position{
		Symbol:   symbol,
		Quantity: quantity,
		Price:    price,
		Value:    value,
		Change:   change,
	}, nil
}

func parseCell(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, fmt.Errorf("empty cell")
	}
	cleaned := strings.ReplaceAll(strings.TrimPrefix(raw, "$"), ",", "")
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("not numeric: %q", raw)
	}
	return d, nil
}
