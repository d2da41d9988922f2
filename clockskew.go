package aws4

import (
	"net/http"
	"sync/atomic"
	"time"
)

// skewThreshold is the clock difference beyond which AWS rejects a signed
// request as too skewed.
const skewThreshold = 4 * time.Minute

// skewErrorCodes are service error codes that authoritatively signal a clock
// problem, even when the observed delta is below the threshold.
var skewErrorCodes = map[string]struct{}{
	"RequestTimeTooSkewed": {},
	"RequestExpired":       {},
	"RequestInTheFuture":   {},
}

// SkewCorrector tracks the difference between this client's clock and the
// server's clock, and supplies a correction offset for subsequent signing
// timestamps. One instance is shared by every request of a client; the offset
// is read and replaced atomically. Corrections overwrite each other, they are
// never accumulated.
type SkewCorrector struct {
	offset atomic.Int64 // nanoseconds, serverTime - clientTime
}

// Correction returns the signed duration to add to signing timestamps.
func (c *SkewCorrector) Correction() time.Duration {
	return time.Duration(c.offset.Load())
}

// IsSkewed reports whether the difference between the two clocks is large
// enough to invalidate time-bound signatures.
func (c *SkewCorrector) IsSkewed(clientTime, serverTime time.Time) bool {
	delta := serverTime.Sub(clientTime)
	if delta < 0 {
		delta = -delta
	}

	return delta >= skewThreshold
}

// Update records serverTime - clientTime as the new correction offset when the
// clocks are skewed, or unconditionally when errorCode is an authoritative
// clock-skew signal. Reports whether a correction was stored.
func (c *SkewCorrector) Update(clientTime, serverTime time.Time, errorCode string) bool {
	_, authoritative := skewErrorCodes[errorCode]
	if !authoritative && !c.IsSkewed(clientTime, serverTime) {
		return false
	}

	c.offset.Store(int64(serverTime.Sub(clientTime)))
	statSkewCorrections.Add(1)

	return true
}

// FromResponse inspects a service response for evidence of clock skew.
// Skew detection is best effort: if the response carries no Date header the
// response is ignored without error. clientTime should be the uncorrected local
// time at which the response was observed.
func (c *SkewCorrector) FromResponse(clientTime time.Time, resp *http.Response, errorCode string) bool {
	if resp == nil {
		return false
	}

	serverTime, err := http.ParseTime(resp.Header.Get("Date"))
	if err != nil {
		return false
	}

	return c.Update(clientTime, serverTime, errorCode)
}
