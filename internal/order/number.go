package order

import (
	"math/rand"
	"strings"
	"time"
)

// Ambiguous characters (0, O, 1, I) are excluded so support staff can read
// numbers back over the phone.
const numberAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const numberSuffixLen = 10

// GenerateNumber builds a customer-facing order number of the form
// CNF-YYYYMMDD-XXXXXXXXXX. Outside production the prefix becomes CNF-TEST-
// so sandbox orders are recognizable at a glance.
func GenerateNumber(now time.Time, production bool) string {
	prefix := "CNF-TEST-"
	if production {
		prefix = "CNF-"
	}

	var sb strings.Builder
	sb.WriteString(prefix)
	sb.WriteString(now.Format("20060102"))
	sb.WriteByte('-')
	for i := 0; i < numberSuffixLen; i++ {
		sb.WriteByte(numberAlphabet[rand.Intn(len(numberAlphabet))])
	}
	return sb.String()
}
