package validator

import (
	"encoding/json"
	"testing"
)

type completeRequest struct {
	FinalPrice json.Number `json:"final_price" validate:"required,price"`
	Notes      string      `json:"notes" validate:"max=20"`
}

func TestPriceRule(t *testing.T) {
	tests := []struct {
		price string
		ok    bool
	}{
		{"500000", true},
		{"500000.5", true},
		{"500000.50", true},
		{"0.01", true},
		{"500000.123", false},
		{"-5", false},
		{"1e6", false},
		{"abc", false},
	}

	for _, tc := range tests {
		err := Validate.Struct(completeRequest{FinalPrice: json.Number(tc.price)})
		if tc.ok && err != nil {
			t.Errorf("price %q: unexpected error %v", tc.price, err)
		}
		if !tc.ok && err == nil {
			t.Errorf("price %q: expected error", tc.price)
		}
	}
}

func TestFieldErrorsUseJSONNames(t *testing.T) {
	err := Validate.Struct(completeRequest{FinalPrice: "1.234", Notes: "this note is far too long for the limit"})
	fields := FieldErrors(err)

	if _, ok := fields["final_price"]; !ok {
		t.Fatalf("expected final_price in %v", fields)
	}
	if _, ok := fields["notes"]; !ok {
		t.Fatalf("expected notes in %v", fields)
	}
}

func TestNotBlank(t *testing.T) {
	type failRequest struct {
		Reason string `json:"reason" validate:"notblank"`
	}
	if err := Validate.Struct(failRequest{Reason: "   "}); err == nil {
		t.Fatal("expected whitespace reason to fail")
	}
	if err := Validate.Struct(failRequest{Reason: "buyer withdrew"}); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestFieldErrorsIgnoresOtherErrors(t *testing.T) {
	if FieldErrors(nil) != nil {
		t.Fatal("expected nil for nil error")
	}
}
