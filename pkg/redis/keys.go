package redis

import "strings"

// Every key lives under "tl:" so a shared Redis can be flushed per app.
const keyNamespace = "tl"

const (
	idempotencyPrefix = "idempotency"
	rateLimitPrefix   = "rate_limit"
	lockPrefix        = "lock"
	marketPrefix      = "market"
)

// IdempotencyKey is the replay record for one user+route scope and client key.
func (c *Client) IdempotencyKey(scope, id string) string {
	return key(idempotencyPrefix, scope, id)
}

// RateLimitKey is the counter for one policy+user window.
func (c *Client) RateLimitKey(scope string) string {
	return key(rateLimitPrefix, scope)
}

func (c *Client) LockKey(name string) string {
	return key(lockPrefix, name)
}

// MarketKey namespaces cached market data, e.g. MarketKey("ticker", "BTCUSDT").
func (c *Client) MarketKey(kind, symbol string) string {
	return key(marketPrefix, kind, symbol)
}

func key(parts ...string) string {
	var b strings.Builder
	b.WriteString(keyNamespace)
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			b.WriteByte(':')
			b.WriteString(part)
		}
	}
	return b.String()
}
