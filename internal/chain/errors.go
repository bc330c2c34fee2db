package chain

import "strings"

// isNonceError reports whether err indicates the submitted nonce was
// already consumed or fell behind the node's view of the account, which
// calls for a fresh read from the latest block rather than a blind retry.
func isNonceError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "nonce too low") || strings.Contains(msg, "nonce expired")
}

// isTransientNetworkError reports whether err looks like a transport-level
// hiccup worth a short sleep and a retry, as opposed to a rejected
// transaction (insufficient funds, reverted simulation, ...) which is
// terminal.
func isTransientNetworkError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, substr := range []string{
		"connection refused",
		"connection reset",
		"timeout",
		"i/o timeout",
		"eof",
		"no such host",
		"context deadline exceeded",
		"temporarily unavailable",
		"too many requests",
	} {
		if strings.Contains(msg, substr) {
			return true
		}
	}
	return false
}
