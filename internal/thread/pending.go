package thread

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// pendingPrefix namespaces locally-assigned ids so they can never collide
// with server-assigned ids.
const pendingPrefix = "pending:"

// NewPendingID builds a local message id of the form pending:<unixmilli>-<rand>.
func NewPendingID(now time.Time) string {
	return fmt.Sprintf("%s%d-%s", pendingPrefix, now.UnixMilli(), uuid.NewString()[:8])
}

// IsPendingID reports whether id lives in the local pending namespace.
func IsPendingID(id string) bool {
	return strings.HasPrefix(id, pendingPrefix)
}

// PendingIDTime extracts the creation timestamp embedded in a pending id.
// Returns false for server ids or malformed pending ids.
func PendingIDTime(id string) (time.Time, bool) {
	rest, ok := strings.CutPrefix(id, pendingPrefix)
	if !ok {
		return time.Time{}, false
	}
	msStr, _, ok := strings.Cut(rest, "-")
	if !ok {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(msStr, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}
