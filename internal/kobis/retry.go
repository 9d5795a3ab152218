package kobis

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"syscall"
	"time"
)

// KST is the zone the upstream quota day rolls over in.
var KST = time.FixedZone("KST", 9*60*60)

// QuotaDay returns the quota accounting day (YYYYMMDD, KST) containing t.
func QuotaDay(t time.Time) string {
	return t.In(KST).Format("20060102")
}

var transientErrs = []error{
	context.DeadlineExceeded,
	io.ErrUnexpectedEOF,
	io.EOF,
	syscall.ECONNRESET,
	syscall.ECONNREFUSED,
	syscall.ECONNABORTED,
	syscall.EPIPE,
}

// transientFragments match errors that lost their type on the way up.
var transientFragments = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"timeout",
	"temporary failure in name resolution",
	"no such host",
	"unexpected eof",
	"too many requests",
	"429",
	"502",
	"503",
	"504",
}

// IsRetriable reports whether a transport-level failure is worth another
// attempt. Cancellation never is.
func IsRetriable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	for _, target := range transientErrs {
		if errors.Is(err, target) {
			return true
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	message := strings.ToLower(err.Error())
	for _, fragment := range transientFragments {
		if strings.Contains(message, fragment) {
			return true
		}
	}
	return false
}
