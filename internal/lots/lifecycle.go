package lots

import (
	"github.com/lotkeeper/lotkeeper-backend/pkg/enums"
	pkgerrors "github.com/lotkeeper/lotkeeper-backend/pkg/errors"
)

// legalTransitions is the closed transition table for lot statuses. Terminal
// statuses (split, depleted, scrapped) have no outgoing edges.
var legalTransitions = map[enums.LotStatus][]enums.LotStatus{
	enums.LotStatusAvailable: {
		enums.LotStatusReserved,
		enums.LotStatusSplit,
		enums.LotStatusDepleted,
		enums.LotStatusScrapped,
	},
	enums.LotStatusReserved: {
		enums.LotStatusAvailable,
		enums.LotStatusSplit,
		enums.LotStatusDepleted,
		enums.LotStatusScrapped,
	},
}

// CanTransition reports whether a lot may move from one status to another.
func CanTransition(from, to enums.LotStatus) bool {
	for _, allowed := range legalTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// guardTransition rejects illegal status changes before any write happens.
func guardTransition(from, to enums.LotStatus) error {
	if from.IsTerminal() {
		return pkgerrors.New(pkgerrors.CodeInvalidState,
			"lot is in terminal status "+string(from))
	}
	if !CanTransition(from, to) {
		return pkgerrors.New(pkgerrors.CodeInvalidState,
			"illegal status transition "+string(from)+" -> "+string(to))
	}
	return nil
}

// guardMutable rejects any quantity or status mutation on a terminal lot.
func guardMutable(status enums.LotStatus) error {
	if status.IsTerminal() {
		return pkgerrors.New(pkgerrors.CodeInvalidState,
			"lot is in terminal status "+string(status))
	}
	return nil
}
