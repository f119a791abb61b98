package lots

import (
	"testing"

	"github.com/lotkeeper/lotkeeper-backend/pkg/enums"
	pkgerrors "github.com/lotkeeper/lotkeeper-backend/pkg/errors"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from enums.LotStatus
		to   enums.LotStatus
		want bool
	}{
		{"available to reserved", enums.LotStatusAvailable, enums.LotStatusReserved, true},
		{"reserved to available", enums.LotStatusReserved, enums.LotStatusAvailable, true},
		{"available to split", enums.LotStatusAvailable, enums.LotStatusSplit, true},
		{"reserved to split", enums.LotStatusReserved, enums.LotStatusSplit, true},
		{"available to depleted", enums.LotStatusAvailable, enums.LotStatusDepleted, true},
		{"reserved to depleted", enums.LotStatusReserved, enums.LotStatusDepleted, true},
		{"available to scrapped", enums.LotStatusAvailable, enums.LotStatusScrapped, true},
		{"reserved to scrapped", enums.LotStatusReserved, enums.LotStatusScrapped, true},
		{"available to available", enums.LotStatusAvailable, enums.LotStatusAvailable, false},
		{"split to available", enums.LotStatusSplit, enums.LotStatusAvailable, false},
		{"split to split", enums.LotStatusSplit, enums.LotStatusSplit, false},
		{"depleted to available", enums.LotStatusDepleted, enums.LotStatusAvailable, false},
		{"depleted to scrapped", enums.LotStatusDepleted, enums.LotStatusScrapped, false},
		{"scrapped to available", enums.LotStatusScrapped, enums.LotStatusAvailable, false},
		{"scrapped to reserved", enums.LotStatusScrapped, enums.LotStatusReserved, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := CanTransition(tc.from, tc.to); got != tc.want {
				t.Fatalf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
			}
		})
	}
}

func TestGuardTransitionTerminal(t *testing.T) {
	for _, status := range []enums.LotStatus{
		enums.LotStatusSplit,
		enums.LotStatusDepleted,
		enums.LotStatusScrapped,
	} {
		err := guardTransition(status, enums.LotStatusAvailable)
		if err == nil {
			t.Fatalf("expected error for terminal status %s", status)
		}
		if pkgerrors.As(err).Code() != pkgerrors.CodeInvalidState {
			t.Fatalf("expected INVALID_STATE for %s, got %v", status, err)
		}
	}
}

func TestGuardMutable(t *testing.T) {
	if err := guardMutable(enums.LotStatusAvailable); err != nil {
		t.Fatalf("available should be mutable: %v", err)
	}
	if err := guardMutable(enums.LotStatusReserved); err != nil {
		t.Fatalf("reserved should be mutable: %v", err)
	}
	if err := guardMutable(enums.LotStatusDepleted); err == nil {
		t.Fatal("depleted should not be mutable")
	}
}
