package services

import "registra/internal/models"

// EvaluatePayability decides whether a computed line may be paid out.
//
// When the declaration does not require an active bank mandate every line is
// payable. When it does, a line is payable iff the shareholder has at least
// one active mandate; otherwise it stays in the run as a non-payable line
// with reason NO_ACTIVE_BANK_MANDATE. Ineligibility never suppresses the
// computation itself, only the payout.
//
// Caution-account exclusion is not handled here: when a declaration excludes
// caution accounts they are filtered out of the eligible population at
// selection time and never reach this check.
func EvaluatePayability(requireActiveMandate, hasActiveMandate bool) (bool, models.IneligibilityReason) {
	if !requireActiveMandate {
		return true, models.ReasonNone
	}
	if hasActiveMandate {
		return true, models.ReasonNone
	}
	return false, models.ReasonNoActiveMandate
}
