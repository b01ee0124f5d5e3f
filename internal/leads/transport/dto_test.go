package transport

import (
	"encoding/json"
	"testing"
)

func TestPriceText(t *testing.T) {
	tests := []struct {
		body   string
		want   string
		wantOK bool
	}{
		{`{}`, "", true},
		{`{"final_price":null}`, "", true},
		{`{"final_price":"500000.00"}`, "500000.00", true},
		{`{"final_price":" 12.5 "}`, "12.5", true},
		{`{"final_price":1234.5}`, "1234.5", true},
		{`{"final_price":"abc"}`, "abc", true},
		{`{"final_price":true}`, "", false},
		{`{"final_price":[1]}`, "", false},
		{`{"final_price":{"amount":1}}`, "", false},
	}

	for _, tc := range tests {
		var req CompleteLeadRequest
		if err := json.Unmarshal([]byte(tc.body), &req); err != nil {
			t.Fatalf("%s: decode failed: %v", tc.body, err)
		}
		got, ok := req.FinalPrice.Text()
		if got != tc.want || ok != tc.wantOK {
			t.Errorf("%s: got (%q, %v), want (%q, %v)", tc.body, got, ok, tc.want, tc.wantOK)
		}
	}
}
