package storage

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestFlagScanner(t *testing.T) {
	cases := []struct {
		src  any
		want bool
	}{
		{nil, false},
		{true, true},
		{false, false},
		{int64(1), true},
		{int64(0), false},
		{float64(1), true},
		{"1", true},
		{"0", false},
		{"true", true},
		{"True", true},
		{"false", false},
		{[]byte("1"), true},
		{"", false},
		{"garbage", false},
	}
	for _, tc := range cases {
		var got bool
		if err := flag(&got).Scan(tc.src); err != nil {
			t.Fatalf("Scan(%#v) error: %v", tc.src, err)
		}
		if got != tc.want {
			t.Errorf("Scan(%#v) = %v, want %v", tc.src, got, tc.want)
		}
	}

	var b bool
	if err := flag(&b).Scan(struct{}{}); err == nil {
		t.Error("expected error for unsupported type")
	}
}

func TestAmountScanner(t *testing.T) {
	cases := []struct {
		src  any
		want string
	}{
		{nil, "0"},
		{int64(600), "600"},
		{float64(12.5), "12.5"},
		{"99.99", "99.99"},
		{[]byte("7"), "7"},
		{"", "0"},
	}
	for _, tc := range cases {
		var got decimal.Decimal
		if err := amount(&got).Scan(tc.src); err != nil {
			t.Fatalf("Scan(%#v) error: %v", tc.src, err)
		}
		if !got.Equal(decimal.RequireFromString(tc.want)) {
			t.Errorf("Scan(%#v) = %s, want %s", tc.src, got, tc.want)
		}
	}

	var d decimal.Decimal
	if err := amount(&d).Scan("not money"); err == nil {
		t.Error("expected error for non numeric text")
	}
}
