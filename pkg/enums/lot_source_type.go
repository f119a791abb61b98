package enums

import "fmt"

// LotSourceType records how a lot entered the system.
type LotSourceType string

const (
	LotSourceTypePurchase   LotSourceType = "purchase"
	LotSourceTypeProduction LotSourceType = "production"
	LotSourceTypeSplit      LotSourceType = "split"
	LotSourceTypeAdjustment LotSourceType = "adjustment"
)

var validLotSourceTypes = []LotSourceType{
	LotSourceTypePurchase,
	LotSourceTypeProduction,
	LotSourceTypeSplit,
	LotSourceTypeAdjustment,
}

// String implements fmt.Stringer.
func (s LotSourceType) String() string {
	return string(s)
}

// IsValid reports whether the value matches the canonical source type enum.
func (s LotSourceType) IsValid() bool {
	for _, candidate := range validLotSourceTypes {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseLotSourceType converts raw input into LotSourceType.
func ParseLotSourceType(value string) (LotSourceType, error) {
	for _, candidate := range validLotSourceTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid lot source type %q", value)
}
