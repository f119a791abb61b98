package enums

import "fmt"

// LotStatus maps to the lot_status_enum enum in Postgres.
type LotStatus string

const (
	LotStatusAvailable LotStatus = "available"
	LotStatusReserved  LotStatus = "reserved"
	LotStatusSplit     LotStatus = "split"
	LotStatusDepleted  LotStatus = "depleted"
	LotStatusScrapped  LotStatus = "scrapped"
)

var validLotStatuses = []LotStatus{
	LotStatusAvailable,
	LotStatusReserved,
	LotStatusSplit,
	LotStatusDepleted,
	LotStatusScrapped,
}

// String implements fmt.Stringer.
func (s LotStatus) String() string {
	return string(s)
}

// IsValid reports whether the value matches the canonical lot status enum.
func (s LotStatus) IsValid() bool {
	for _, candidate := range validLotStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status admits no further transitions.
// Terminal lots have a frozen current_quantity.
func (s LotStatus) IsTerminal() bool {
	switch s {
	case LotStatusSplit, LotStatusDepleted, LotStatusScrapped:
		return true
	}
	return false
}

// ParseLotStatus converts raw input into LotStatus.
func ParseLotStatus(value string) (LotStatus, error) {
	for _, candidate := range validLotStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid lot status %q", value)
}
