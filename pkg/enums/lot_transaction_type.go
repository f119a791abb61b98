package enums

import "fmt"

// LotTransactionType maps to the lot_transaction_type_enum enum in Postgres.
type LotTransactionType string

const (
	LotTransactionTypeReceive   LotTransactionType = "receive"
	LotTransactionTypeConsume   LotTransactionType = "consume"
	LotTransactionTypeReserve   LotTransactionType = "reserve"
	LotTransactionTypeUnreserve LotTransactionType = "unreserve"
	LotTransactionTypeSplitOut  LotTransactionType = "split_out"
	LotTransactionTypeSplitIn   LotTransactionType = "split_in"
	LotTransactionTypeScrap     LotTransactionType = "scrap"
	LotTransactionTypeAdjust    LotTransactionType = "adjust"
)

var validLotTransactionTypes = []LotTransactionType{
	LotTransactionTypeReceive,
	LotTransactionTypeConsume,
	LotTransactionTypeReserve,
	LotTransactionTypeUnreserve,
	LotTransactionTypeSplitOut,
	LotTransactionTypeSplitIn,
	LotTransactionTypeScrap,
	LotTransactionTypeAdjust,
}

// String implements fmt.Stringer.
func (t LotTransactionType) String() string {
	return string(t)
}

// IsValid reports whether the value matches the canonical transaction type enum.
func (t LotTransactionType) IsValid() bool {
	for _, candidate := range validLotTransactionTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseLotTransactionType converts raw input into LotTransactionType.
func ParseLotTransactionType(value string) (LotTransactionType, error) {
	for _, candidate := range validLotTransactionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid lot transaction type %q", value)
}
