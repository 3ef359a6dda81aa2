package id

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewLoanNumber returns "LN-YYYYMMDD-NNNN" for the given day. Callers retry
// on a unique-index collision.
func NewLoanNumber(at time.Time) string {
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		n = big.NewInt(at.UnixNano() % 10000)
	}
	return fmt.Sprintf("LN-%s-%04d", at.Format("20060102"), n.Int64())
}

// NewReference returns PREFIX-<uuid without dashes, upper case>.
func NewReference(prefix string) string {
	u := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return prefix + "-" + u
}
