// Package match decides whether feed evidence proves payment of an order.
//
// The evidence is free text, so matching is heuristic by nature. The rules
// here are deliberate port-stable behavior: downstream flows depend on the
// exact acceptance surface, including its documented false-positive risk in
// the sender-name fallback.
package match

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/danieltrsl/odcover/internal/services/insurance/domain"
	"github.com/danieltrsl/odcover/internal/services/insurance/feed"
)

const (
	// VerificationLookback bounds how old a record may be and still verify
	// a payment.
	VerificationLookback = 24 * time.Hour
	// DetectionLookback bounds auto-detection to very recent records.
	DetectionLookback = time.Hour

	itemKeyword = "xanax"
	// someQuantity is the indeterminate phrasing the feed uses for a
	// single-unit transfer.
	someQuantity = "some xanax"
)

var quantityPattern = regexp.MustCompile(`(\d+)x?\s*xanax`)

// Match is the evidence backing a verified payment.
type Match struct {
	Record   feed.Record
	Position int
}

// VerifyPayment scans records in feed order, earliest position first, and
// accepts the first record that jointly carries the item keyword, the
// order's class marker, a transfer phrase, the exact deposit quantity, and
// sender evidence for the owner. There is no scoring across candidates.
// A negative result is not an error.
func VerifyPayment(order domain.Order, ownerName string, records []feed.Record, now time.Time) (Match, bool) {
	policy, ok := order.Class.Policy()
	if !ok {
		return Match{}, false
	}
	marker := strings.ToLower(policy.Marker)
	owner := strings.ToLower(strings.TrimSpace(ownerName))
	cutoff := now.UTC().Add(-VerificationLookback)

	for position, record := range records {
		if record.Text == "" || record.Timestamp.IsZero() {
			continue
		}
		if record.Timestamp.Before(cutoff) {
			continue
		}
		text := strings.ToLower(record.Text)

		if !strings.Contains(text, itemKeyword) ||
			!strings.Contains(text, marker) ||
			!hasTransferPhrase(text) {
			continue
		}
		if !quantityMatches(text, order.Deposit) {
			continue
		}
		if !senderMatches(text, owner) {
			continue
		}
		return Match{Record: record, Position: position}, true
	}
	return Match{}, false
}

func hasTransferPhrase(text string) bool {
	if strings.Contains(text, "sent") && strings.Contains(text, "to you") {
		return true
	}
	return strings.Contains(text, "you were sent") || strings.Contains(text, "received")
}

// quantityMatches extracts the first numeric run adjacent to the item
// keyword and requires it to equal the deposit exactly. No partial or
// over-payment is accepted. The indeterminate phrasing counts as one unit.
func quantityMatches(text string, deposit int) bool {
	if groups := quantityPattern.FindStringSubmatch(text); groups != nil {
		found, err := strconv.Atoi(groups[1])
		if err != nil {
			return false
		}
		return found == deposit
	}
	return strings.Contains(text, someQuantity) && deposit == 1
}

// senderMatches accepts an exact substring match of the owner's display
// name, or, failing that, any individual name token longer than two
// characters. The token fallback can false-positive on common words in
// unrelated evidence; that behavior is intentional and preserved.
func senderMatches(text, owner string) bool {
	if strings.Contains(text, owner) {
		return true
	}
	for _, token := range strings.Fields(owner) {
		if len(token) > 2 && strings.Contains(text, token) {
			return true
		}
	}
	return false
}
