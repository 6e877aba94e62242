package scanqueue

import (
	"fmt"
	"time"

	"github.com/angelmondragon/backoffice-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/backoffice-backend/pkg/errors"
)

const (
	outcomeFound    = "found"
	outcomeNotFound = "not_found"
	outcomeTimeout  = "timeout"
	outcomeError    = "error"
	outcomeStale    = "stale"
)

// describeFailure maps a lookup error onto a metrics outcome and the
// operator-facing message naming the offending code.
func describeFailure(code string, err error, timedOut bool, timeout time.Duration) (string, enums.NotificationSeverity, string) {
	switch {
	case pkgerrors.IsCode(err, pkgerrors.CodeNotFound):
		return outcomeNotFound, enums.NotificationSeverityWarning,
			fmt.Sprintf("product %q not found", code)
	case timedOut:
		return outcomeTimeout, enums.NotificationSeverityError,
			fmt.Sprintf("lookup for %q timed out after %s", code, timeout)
	default:
		reason := "lookup service unavailable"
		if typed := pkgerrors.As(err); typed != nil && typed.Message() != "" {
			reason = typed.Message()
		}
		return outcomeError, enums.NotificationSeverityError,
			fmt.Sprintf("lookup for %q failed: %s", code, reason)
	}
}
