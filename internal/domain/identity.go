package domain

import (
	"regexp"
	"strings"
)

var walletPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// NormalizeWallet validates a wallet-address identity and returns its
// lowercase canonical form. Validation happens before any room mutation.
func NormalizeWallet(addr string) (string, error) {
	if !walletPattern.MatchString(addr) {
		return "", ErrInvalidIdentity
	}
	return strings.ToLower(addr), nil
}

// ShortWallet renders an abbreviated wallet address for display names.
func ShortWallet(addr string) string {
	if len(addr) < 10 {
		return addr
	}
	return addr[:6] + "…" + addr[len(addr)-4:]
}
