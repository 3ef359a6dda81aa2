package id

import (
	"regexp"
	"testing"
	"time"
)

var reLoanNumber = regexp.MustCompile(`^LN-20250906-[0-9]{4}$`)

func TestNewLoanNumber_Format(t *testing.T) {
	at := time.Date(2025, 9, 6, 23, 0, 0, 0, time.UTC)
	for i := 0; i < 50; i++ {
		got := NewLoanNumber(at)
		if !reLoanNumber.MatchString(got) {
			t.Fatalf("unexpected loan number %q", got)
		}
	}
}

func TestNewReference_PrefixAndUniqueness(t *testing.T) {
	a, b := NewReference("PAY"), NewReference("PAY")
	if a == b {
		t.Fatalf("references must differ: %q", a)
	}
	if len(a) != len("PAY-")+32 || a[:4] != "PAY-" {
		t.Fatalf("unexpected reference %q", a)
	}
}
