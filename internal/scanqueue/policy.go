package scanqueue

import (
	"fmt"
	"strings"
)

// DuplicatePolicy decides what happens to a code scanned again while an
// earlier scan of it is still pending.
type DuplicatePolicy string

const (
	// DuplicatePolicyDrop discards the repeat scan; the product is counted once.
	DuplicatePolicyDrop DuplicatePolicy = "drop"
	// DuplicatePolicyQueue keeps the repeat scan and applies it after the
	// first one resolves, counting the product twice.
	DuplicatePolicyQueue DuplicatePolicy = "queue"
)

func (p DuplicatePolicy) IsValid() bool {
	return p == DuplicatePolicyDrop || p == DuplicatePolicyQueue
}

// ParseDuplicatePolicy normalizes configuration input; blank means drop.
func ParseDuplicatePolicy(value string) (DuplicatePolicy, error) {
	normalized := DuplicatePolicy(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return DuplicatePolicyDrop, nil
	}
	if !normalized.IsValid() {
		return "", fmt.Errorf("invalid duplicate policy %q", value)
	}
	return normalized, nil
}
