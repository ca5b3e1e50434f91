package match

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/danieltrsl/odcover/internal/services/insurance/domain"
	"github.com/danieltrsl/odcover/internal/services/insurance/feed"
)

// DetectedOrder is a candidate order discovered directly from feed text,
// for senders with no prior pending order.
type DetectedOrder struct {
	SenderName string
	Class      domain.CoverageClass
	Amount     int
	Timestamp  time.Time
	Text       string
}

var senderAnchorPattern = regexp.MustCompile(`from.*?>([^<]+)</a>`)

// DetectOrders discovers brand-new orders from recent feed records. It is a
// separately callable capability: the reconciliation loop does not invoke
// it, matching how the system is wired in production.
func DetectOrders(records []feed.Record, now time.Time) []DetectedOrder {
	cutoff := now.UTC().Add(-DetectionLookback)

	var detected []DetectedOrder
	for _, record := range records {
		if record.Text == "" || record.Timestamp.IsZero() {
			continue
		}
		if record.Timestamp.Before(cutoff) {
			continue
		}
		text := strings.ToLower(record.Text)

		if !strings.Contains(text, itemKeyword) || !hasTransferPhrase(text) {
			continue
		}
		var class domain.CoverageClass
		switch {
		case strings.Contains(text, "hjsx"):
			class = domain.CoverageXanax
		case strings.Contains(text, "hjse"):
			class = domain.CoverageEcstasy
		default:
			continue
		}

		sender := extractSender(record.Text)
		if sender == "" {
			continue
		}

		amount := extractAmount(text)
		if amount == 0 {
			continue
		}

		detected = append(detected, DetectedOrder{
			SenderName: sender,
			Class:      class,
			Amount:     amount,
			Timestamp:  record.Timestamp,
			Text:       record.Text,
		})
	}
	return detected
}

// extractSender pulls the sender display name from anchor markup when
// present, falling back to the first word after "from".
func extractSender(text string) string {
	if groups := senderAnchorPattern.FindStringSubmatch(text); groups != nil {
		return strings.TrimSpace(groups[1])
	}
	_, after, found := strings.Cut(text, " from ")
	if !found {
		return ""
	}
	namePart, _, _ := strings.Cut(after, " with")
	fields := strings.Fields(strings.TrimSpace(namePart))
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func extractAmount(text string) int {
	if groups := quantityPattern.FindStringSubmatch(text); groups != nil {
		amount, err := strconv.Atoi(groups[1])
		if err != nil {
			return 0
		}
		return amount
	}
	if strings.Contains(text, someQuantity) {
		return 1
	}
	return 0
}
