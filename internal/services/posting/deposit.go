package posting

import (
	"strings"

	"github.com/kevin07696/card-reconciliation/internal/domain/ports"
)

// DefaultDepositKeywords identify the settlement payment method line of the destination journal
var DefaultDepositKeywords = []string{"settlement", "liquidación", "liquidacion"}

// ResolveDepositAccount picks the deposit account from a journal's inbound payment
// method lines. A keyword match on the line name wins over one on the payment
// method name; lines without an account never match.
func ResolveDepositAccount(lines []ports.JournalPaymentMethodLine, keywords []string) (string, bool) {
	for _, l := range lines {
		if l.AccountID != "" && containsAny(l.Name, keywords) {
			return l.AccountID, true
		}
	}
	for _, l := range lines {
		if l.AccountID != "" && containsAny(l.PaymentMethodName, keywords) {
			return l.AccountID, true
		}
	}
	return "", false
}

func containsAny(s string, keywords []string) bool {
	s = strings.ToLower(s)
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" && strings.Contains(s, k) {
			return true
		}
	}
	return false
}
