package services

import (
	"testing"

	"registra/internal/models"
)

func TestEvaluatePayability(t *testing.T) {
	t.Run("mandate_not_required", func(t *testing.T) {
		payable, reason := EvaluatePayability(false, false)
		if !payable {
			t.Error("expected payable when no mandate is required")
		}
		if reason != models.ReasonNone {
			t.Errorf("expected reason NONE, got %s", reason)
		}
	})

	t.Run("mandate_required_and_present", func(t *testing.T) {
		payable, reason := EvaluatePayability(true, true)
		if !payable {
			t.Error("expected payable with an active mandate")
		}
		if reason != models.ReasonNone {
			t.Errorf("expected reason NONE, got %s", reason)
		}
	})

	t.Run("mandate_required_and_missing", func(t *testing.T) {
		payable, reason := EvaluatePayability(true, false)
		if payable {
			t.Error("expected not payable without an active mandate")
		}
		if reason != models.ReasonNoActiveMandate {
			t.Errorf("expected reason NO_ACTIVE_BANK_MANDATE, got %s", reason)
		}
	})
}
