package domain

import (
	"errors"
	"testing"
	"time"
)

func TestNormalizeSymbol(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"aapl", "AAPL", false},
		{"  msft ", "MSFT", false},
		{"^gspc", "^GSPC", false},
		{"brk.b", "BRK.B", false},
		{"eurusd=x", "EURUSD=X", false},
		{"", "", true},
		{"AA PL", "", true},
		{"AAPL;DROP", "", true},
		{"ABCDEFGHIJKLMNOP", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeSymbol(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NormalizeSymbol(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("NormalizeSymbol(%q) = %q, want %q", tt.in, got, tt.want)
			}
			if err != nil && !errors.Is(err, ErrInvalidSymbol) {
				t.Errorf("expected ErrInvalidSymbol, got %v", err)
			}
		})
	}
}

func TestFetchStatus_Healthy(t *testing.T) {
	t0 := time.Now()
	if !(FetchStatus{}).Healthy() {
		t.Error("fresh status should be healthy")
	}
	if (FetchStatus{LastErrorAt: t0, LastSuccessAt: t0.Add(-time.Second)}).Healthy() {
		t.Error("error after success should be unhealthy")
	}
	if !(FetchStatus{LastErrorAt: t0, LastSuccessAt: t0.Add(time.Second)}).Healthy() {
		t.Error("success after error should be healthy")
	}
}
