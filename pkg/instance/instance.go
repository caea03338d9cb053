package instance

import (
	"os"
	"strings"
)

const fallbackID = "worker-0"

// GetID identifies the running process for lock ownership and log correlation.
// TRADELEDGER_INSTANCE_ID wins, then the host name.
func GetID() string {
	if id := strings.TrimSpace(os.Getenv("TRADELEDGER_INSTANCE_ID")); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return fallbackID
}
