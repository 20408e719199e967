// Package validator provides custom validation functions for Gin's binding engine.
package validator

import (
	"regexp"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// roleCodeRegex matches registry role codes such as REGISTRAR or FIN_CONTROLLER.
var roleCodeRegex = regexp.MustCompile(`^[A-Z][A-Z0-9_]{1,49}$`)

// Register registers all custom validators with the Gin binding engine.
func Register() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("approval_decision", validateApprovalDecision)
		_ = v.RegisterValidation("payout_mode", validatePayoutMode)
		_ = v.RegisterValidation("role_code", validateRoleCode)
		_ = v.RegisterValidation("payment_status", validatePaymentStatus)
	}
}

func validateApprovalDecision(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "APPROVED", "REJECTED", "QUERY_RAISED":
		return true
	}
	return false
}

func validatePayoutMode(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "bank_transfer", "cheque":
		return true
	}
	return false
}

func validateRoleCode(fl validator.FieldLevel) bool {
	return roleCodeRegex.MatchString(fl.Field().String())
}

// validatePaymentStatus accepts only the statuses a caller may request
// directly; initiated and reissued are set by the system.
func validatePaymentStatus(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "paid", "failed", "disputed":
		return true
	}
	return false
}
