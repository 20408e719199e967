package integration

import (
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"registra/internal/testutil"
)

// decimalField parses a quoted decimal out of a parsed JSON object.
func decimalField(t *testing.T, obj map[string]interface{}, key string) decimal.Decimal {
	t.Helper()
	raw, ok := obj[key].(string)
	if !ok {
		t.Fatalf("expected %s to be a decimal string, got %T (%v)", key, obj[key], obj[key])
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		t.Fatalf("invalid decimal in %s: %v", key, err)
	}
	return d
}

func TestDeclarationFlow_EndToEnd(t *testing.T) {
	app := setupApp(t)

	// Registry data comes from upstream systems, so it is seeded directly.
	company := testutil.CreateTestCompany(t, app.DB)
	register := testutil.CreateTestRegister(t, app.DB, company.ID)
	class := testutil.CreateTestShareClass(t, app.DB, register.ID, "10")

	banked := testutil.CreateTestShareholder(t, app.DB)
	testutil.CreateTestBankMandate(t, app.DB, banked.ID)
	bankedAcct := testutil.CreateTestRegisterAccount(t, app.DB, banked.ID, register.ID)
	testutil.CreateTestPosition(t, app.DB, bankedAcct.ID, class.ID, "1000")

	unbanked := testutil.CreateTestShareholder(t, app.DB)
	unbankedAcct := testutil.CreateTestRegisterAccount(t, app.DB, unbanked.ID, register.ID)
	testutil.CreateTestPosition(t, app.DB, unbankedAcct.ID, class.ID, "500")

	testutil.CreateTestApprovalSteps(t, app.DB, company.ID, map[int][]string{
		1: {"REGISTRAR"},
		2: {"FIN_CONTROLLER"},
	})

	_, makerToken := newActor(t)
	_, registrarToken := newActor(t, "REGISTRAR")
	_, controllerToken := newActor(t, "FIN_CONTROLLER")

	// Step 1: Create the declaration
	rec := app.request("POST", "/api/v1/declarations",
		fmt.Sprintf(`{"company_id":%q,"register_id":%q,"period_label":"FY2025 Final","rate_per_share":"2.00","record_date":"2026-03-31"}`,
			company.ID, register.ID), makerToken)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 creating declaration, got %d: %s", rec.Code, rec.Body.String())
	}
	decl := parseJSON(t, rec)["declaration"].(map[string]interface{})
	declID := decl["id"].(string)
	if decl["status"] != "DRAFT" {
		t.Errorf("expected DRAFT, got %v", decl["status"])
	}

	// Step 2: Preview entitlements (1500 shares at 2.00, 10% tax)
	rec = app.request("GET", fmt.Sprintf("/api/v1/declarations/%s/entitlements/preview", declID), "", makerToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 previewing, got %d: %s", rec.Code, rec.Body.String())
	}
	preview := parseJSON(t, rec)
	if len(preview["line_items"].([]interface{})) != 2 {
		t.Fatalf("expected 2 preview lines, got %d", len(preview["line_items"].([]interface{})))
	}
	grand := preview["grand_totals"].(map[string]interface{})
	if !decimalField(t, grand, "total_gross").Equal(decimal.RequireFromString("3000")) {
		t.Errorf("expected gross 3000, got %v", grand["total_gross"])
	}
	if !decimalField(t, grand, "total_tax").Equal(decimal.RequireFromString("300")) {
		t.Errorf("expected tax 300, got %v", grand["total_tax"])
	}
	if !decimalField(t, grand, "total_net").Equal(decimal.RequireFromString("2700")) {
		t.Errorf("expected net 2700, got %v", grand["total_net"])
	}

	// Step 3: Submit into the approval sequence
	rec = app.request("POST", fmt.Sprintf("/api/v1/declarations/%s/submit", declID), "", makerToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 submitting, got %d: %s", rec.Code, rec.Body.String())
	}
	decl = parseJSON(t, rec)["declaration"].(map[string]interface{})
	if decl["status"] != "SUBMITTED" || decl["current_approval_step"].(float64) != 1 {
		t.Fatalf("expected SUBMITTED at step 1, got %v step %v", decl["status"], decl["current_approval_step"])
	}

	// Step 4: Registrar approves step 1
	rec = app.request("POST", fmt.Sprintf("/api/v1/declarations/%s/decisions", declID),
		`{"role_code":"REGISTRAR","decision":"APPROVED"}`, registrarToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 approving step 1, got %d: %s", rec.Code, rec.Body.String())
	}
	decl = parseJSON(t, rec)["declaration"].(map[string]interface{})
	if decl["current_approval_step"].(float64) != 2 {
		t.Fatalf("expected step 2 after first approval, got %v", decl["current_approval_step"])
	}

	// Step 5: Financial controller approves the final step
	rec = app.request("POST", fmt.Sprintf("/api/v1/declarations/%s/decisions", declID),
		`{"role_code":"FIN_CONTROLLER","decision":"APPROVED"}`, controllerToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 approving step 2, got %d: %s", rec.Code, rec.Body.String())
	}
	decl = parseJSON(t, rec)["declaration"].(map[string]interface{})
	if decl["status"] != "APPROVED" {
		t.Fatalf("expected APPROVED, got %v", decl["status"])
	}
	if _, present := decl["current_approval_step"]; present {
		t.Errorf("expected no pending step after final approval, got %v", decl["current_approval_step"])
	}

	// Step 6: Freeze the entitlements
	rec = app.request("POST", fmt.Sprintf("/api/v1/declarations/%s/entitlements/freeze", declID), "", makerToken)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 freezing, got %d: %s", rec.Code, rec.Body.String())
	}
	run := parseJSON(t, rec)["run"].(map[string]interface{})
	if run["run_type"] != "FROZEN" || run["run_status"] != "COMPLETED" {
		t.Fatalf("expected COMPLETED FROZEN run, got %v %v", run["run_type"], run["run_status"])
	}
	if !decimalField(t, run, "total_gross_amount").Equal(decimal.RequireFromString("3000")) {
		t.Errorf("expected frozen gross 3000, got %v", run["total_gross_amount"])
	}

	// Step 7: Go live
	rec = app.request("POST", fmt.Sprintf("/api/v1/declarations/%s/go-live", declID), "", makerToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 going live, got %d: %s", rec.Code, rec.Body.String())
	}
	if status := parseJSON(t, rec)["declaration"].(map[string]interface{})["status"]; status != "LIVE" {
		t.Fatalf("expected LIVE, got %v", status)
	}

	// Step 8: Generate payments (one per payable line)
	rec = app.request("POST", fmt.Sprintf("/api/v1/declarations/%s/payments/generate", declID), "", makerToken)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 generating payments, got %d: %s", rec.Code, rec.Body.String())
	}
	if created := parseJSON(t, rec)["created"].(float64); created != 2 {
		t.Fatalf("expected 2 payments created, got %.0f", created)
	}

	// Step 9: List payments; the banked holder pays by transfer, the other by cheque
	rec = app.request("GET", fmt.Sprintf("/api/v1/declarations/%s/payments", declID), "", makerToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 listing payments, got %d: %s", rec.Code, rec.Body.String())
	}
	paymentsResult := parseJSON(t, rec)
	if paymentsResult["total_items"].(float64) != 2 {
		t.Fatalf("expected 2 payments, got %.0f", paymentsResult["total_items"].(float64))
	}
	modes := map[string]int{}
	var paymentID string
	for _, item := range paymentsResult["data"].([]interface{}) {
		payment := item.(map[string]interface{})
		modes[payment["payout_mode"].(string)]++
		if payment["status"] != "initiated" {
			t.Errorf("expected initiated payment, got %v", payment["status"])
		}
		paymentID = payment["id"].(string)
	}
	if modes["bank_transfer"] != 1 || modes["cheque"] != 1 {
		t.Errorf("expected one bank_transfer and one cheque, got %v", modes)
	}

	// Step 10: Mark one payment failed
	rec = app.request("PATCH", fmt.Sprintf("/api/v1/payments/%s/status", paymentID),
		`{"status":"failed","reason":"Account closed"}`, makerToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 failing payment, got %d: %s", rec.Code, rec.Body.String())
	}
	if status := parseJSON(t, rec)["payment"].(map[string]interface{})["status"]; status != "failed" {
		t.Fatalf("expected failed payment, got %v", status)
	}

	// Step 11: Reissue the failed payment
	rec = app.request("POST", fmt.Sprintf("/api/v1/payments/%s/reissue", paymentID),
		`{"reason":"Account closed"}`, makerToken)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 reissuing, got %d: %s", rec.Code, rec.Body.String())
	}
	reissue := parseJSON(t, rec)
	original := reissue["original"].(map[string]interface{})
	replacement := reissue["replacement"].(map[string]interface{})
	if original["status"] != "reissued" {
		t.Errorf("expected original to be reissued, got %v", original["status"])
	}
	if replacement["status"] != "initiated" {
		t.Errorf("expected replacement to be initiated, got %v", replacement["status"])
	}
	if replacement["reissued_from_id"] != paymentID {
		t.Errorf("expected replacement lineage to %s, got %v", paymentID, replacement["reissued_from_id"])
	}

	// Step 12: Export the frozen register as CSV
	rec = app.request("GET", fmt.Sprintf("/api/v1/declarations/%s/export/csv", declID), "", makerToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 exporting, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("expected text/csv, got %s", ct)
	}
	if disposition := rec.Header().Get("Content-Disposition"); !strings.Contains(disposition, ".csv") {
		t.Errorf("expected a csv attachment, got %q", disposition)
	}
	if !strings.HasPrefix(rec.Body.String(), "account_no,") {
		t.Errorf("expected CSV header row, got %q", rec.Body.String())
	}

	// Step 13: Archive the declaration
	rec = app.request("POST", fmt.Sprintf("/api/v1/declarations/%s/archive", declID), "", makerToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 archiving, got %d: %s", rec.Code, rec.Body.String())
	}
	decl = parseJSON(t, rec)["declaration"].(map[string]interface{})
	if decl["status"] != "ARCHIVED" || decl["archived_from_status"] != "LIVE" {
		t.Fatalf("expected ARCHIVED from LIVE, got %v from %v", decl["status"], decl["archived_from_status"])
	}

	// Step 14: The audit trail covers the whole lifecycle
	rec = app.request("GET", fmt.Sprintf("/api/v1/declarations/%s/events", declID), "", makerToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 listing events, got %d: %s", rec.Code, rec.Body.String())
	}
	if total := parseJSON(t, rec)["total_items"].(float64); total < 8 {
		t.Errorf("expected a full audit trail, got %.0f events", total)
	}
}

func TestDeclarationFlow_QueryAndRejection(t *testing.T) {
	app := setupApp(t)

	company := testutil.CreateTestCompany(t, app.DB)
	register := testutil.CreateTestRegister(t, app.DB, company.ID)
	testutil.CreateTestApprovalSteps(t, app.DB, company.ID, map[int][]string{1: {"REGISTRAR"}})

	_, makerToken := newActor(t)
	_, registrarToken := newActor(t, "REGISTRAR")

	decl := testutil.CreateTestDeclaration(t, app.DB, company.ID, register.ID, "1.00")

	// Submit
	rec := app.request("POST", fmt.Sprintf("/api/v1/declarations/%s/submit", decl.ID), "", makerToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 submitting, got %d: %s", rec.Code, rec.Body.String())
	}

	// Registrar raises a query
	rec = app.request("POST", fmt.Sprintf("/api/v1/declarations/%s/decisions", decl.ID),
		`{"role_code":"REGISTRAR","decision":"QUERY_RAISED","comment":"Confirm the record date"}`, registrarToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 raising query, got %d: %s", rec.Code, rec.Body.String())
	}
	if status := parseJSON(t, rec)["declaration"].(map[string]interface{})["status"]; status != "QUERY_RAISED" {
		t.Fatalf("expected QUERY_RAISED, got %v", status)
	}

	// Resubmission returns to the same step
	rec = app.request("POST", fmt.Sprintf("/api/v1/declarations/%s/submit", decl.ID), "", makerToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 resubmitting, got %d: %s", rec.Code, rec.Body.String())
	}
	resubmitted := parseJSON(t, rec)["declaration"].(map[string]interface{})
	if resubmitted["current_approval_step"].(float64) != 1 {
		t.Fatalf("expected step 1 after resubmission, got %v", resubmitted["current_approval_step"])
	}

	// Rejection without a comment is refused
	rec = app.request("POST", fmt.Sprintf("/api/v1/declarations/%s/decisions", decl.ID),
		`{"role_code":"REGISTRAR","decision":"REJECTED"}`, registrarToken)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for rejection without reason, got %d: %s", rec.Code, rec.Body.String())
	}

	// Rejection with a comment is terminal
	rec = app.request("POST", fmt.Sprintf("/api/v1/declarations/%s/decisions", decl.ID),
		`{"role_code":"REGISTRAR","decision":"REJECTED","comment":"Rate disputed by the company"}`, registrarToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 rejecting, got %d: %s", rec.Code, rec.Body.String())
	}
	rejected := parseJSON(t, rec)["declaration"].(map[string]interface{})
	if rejected["status"] != "REJECTED" {
		t.Fatalf("expected REJECTED, got %v", rejected["status"])
	}
	if rejected["rejection_reason"] != "Rate disputed by the company" {
		t.Errorf("expected rejection reason to be recorded, got %v", rejected["rejection_reason"])
	}

	// A rejected declaration takes no further submissions
	rec = app.request("POST", fmt.Sprintf("/api/v1/declarations/%s/submit", decl.ID), "", makerToken)
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 submitting a rejected declaration, got %d", rec.Code)
	}
}

func TestDeclarationFlow_Delegation(t *testing.T) {
	app := setupApp(t)

	company := testutil.CreateTestCompany(t, app.DB)
	register := testutil.CreateTestRegister(t, app.DB, company.ID)
	testutil.CreateTestApprovalSteps(t, app.DB, company.ID, map[int][]string{1: {"REGISTRAR"}})

	_, makerToken := newActor(t)
	relieverID, relieverToken := newActor(t) // no roles of their own

	decl := testutil.CreateTestDeclaration(t, app.DB, company.ID, register.ID, "1.00")

	rec := app.request("POST", fmt.Sprintf("/api/v1/declarations/%s/submit", decl.ID), "", makerToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 submitting, got %d: %s", rec.Code, rec.Body.String())
	}

	// Without a delegation the reliever is refused
	rec = app.request("POST", fmt.Sprintf("/api/v1/declarations/%s/decisions", decl.ID),
		`{"role_code":"REGISTRAR","decision":"APPROVED"}`, relieverToken)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without delegation, got %d: %s", rec.Code, rec.Body.String())
	}

	// Delegate the registrar role to the reliever for this declaration
	rec = app.request("POST", fmt.Sprintf("/api/v1/declarations/%s/delegations", decl.ID),
		fmt.Sprintf(`{"role_code":"REGISTRAR","reliever_user_id":%q}`, relieverID), makerToken)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 creating delegation, got %d: %s", rec.Code, rec.Body.String())
	}
	delegation := parseJSON(t, rec)["delegation"].(map[string]interface{})
	delegationID := delegation["id"].(string)

	// The reliever may now act as the registrar
	rec = app.request("POST", fmt.Sprintf("/api/v1/declarations/%s/decisions", decl.ID),
		`{"role_code":"REGISTRAR","decision":"APPROVED"}`, relieverToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 approving via delegation, got %d: %s", rec.Code, rec.Body.String())
	}
	if status := parseJSON(t, rec)["declaration"].(map[string]interface{})["status"]; status != "APPROVED" {
		t.Fatalf("expected APPROVED, got %v", status)
	}

	// List and revoke
	rec = app.request("GET", fmt.Sprintf("/api/v1/declarations/%s/delegations", decl.ID), "", makerToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 listing delegations, got %d: %s", rec.Code, rec.Body.String())
	}
	if delegations := parseJSON(t, rec)["delegations"].([]interface{}); len(delegations) != 1 {
		t.Fatalf("expected 1 delegation, got %d", len(delegations))
	}

	rec = app.request("DELETE", fmt.Sprintf("/api/v1/declarations/%s/delegations/%s", decl.ID, delegationID), "", makerToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 revoking delegation, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestDeclarationFlow_AuthRequired(t *testing.T) {
	app := setupApp(t)

	rec := app.request("GET", "/api/v1/declarations?company_id=00000000-0000-4000-8000-000000000001", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", rec.Code)
	}

	rec = app.request("GET", "/api/v1/declarations?company_id=00000000-0000-4000-8000-000000000001", "", "not-a-token")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 with a bad token, got %d", rec.Code)
	}
}
