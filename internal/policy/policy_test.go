package policy

import "testing"

func TestCheckCommandAllowed(t *testing.T) {
	if err := CheckCommandAllowed(nil, "actions list"); err != nil {
		t.Fatalf("unexpected error with empty allowlist: %v", err)
	}
	if err := CheckCommandAllowed([]string{"actions  LIST"}, "actions list"); err != nil {
		t.Fatalf("expected command to be allowed: %v", err)
	}
	if err := CheckCommandAllowed([]string{"plugins list"}, "run"); err == nil {
		t.Fatal("expected command to be blocked")
	}
}

func TestCheckActionAllowed(t *testing.T) {
	if err := CheckActionAllowed(nil, "SEND_TOKENS"); err != nil {
		t.Fatalf("unexpected error with empty allowlist: %v", err)
	}
	if err := CheckActionAllowed([]string{"get_*"}, "GET_TOKEN_PRICE_ANKR"); err != nil {
		t.Fatalf("expected prefix match: %v", err)
	}
	if err := CheckActionAllowed([]string{"buy_curves_token"}, "BUY_CURVES_TOKEN"); err != nil {
		t.Fatalf("expected case-insensitive match: %v", err)
	}
	if err := CheckActionAllowed([]string{"GET_*"}, "SEND_TOKENS"); err == nil {
		t.Fatal("expected action to be blocked")
	}
}
