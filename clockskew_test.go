package aws4

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSkewCorrector_IsSkewed(t *testing.T) {
	at := time.Date(2020, 10, 16, 19, 56, 0, 0, time.UTC)

	var skew SkewCorrector
	assert.False(t, skew.IsSkewed(at, at))
	assert.False(t, skew.IsSkewed(at, at.Add(4*time.Minute-time.Second)))
	assert.False(t, skew.IsSkewed(at, at.Add(-4*time.Minute+time.Second)))
	assert.True(t, skew.IsSkewed(at, at.Add(4*time.Minute)))
	assert.True(t, skew.IsSkewed(at, at.Add(-4*time.Minute)))
}

func TestSkewCorrector_Update(t *testing.T) {
	at := time.Date(2020, 10, 16, 19, 56, 0, 0, time.UTC)

	t.Run("BelowThreshold", func(t *testing.T) {
		var skew SkewCorrector
		assert.False(t, skew.Update(at, at.Add(time.Minute), ""))
		assert.Zero(t, skew.Correction())
	})
	t.Run("AboveThreshold", func(t *testing.T) {
		var skew SkewCorrector
		assert.True(t, skew.Update(at, at.Add(5*time.Minute), ""))
		assert.Equal(t, 5*time.Minute, skew.Correction())
	})
	t.Run("AuthoritativeErrorCode", func(t *testing.T) {
		// An explicit clock-skew rejection is trusted even when the observed
		// delta alone would not cross the threshold.
		var skew SkewCorrector
		assert.True(t, skew.Update(at, at.Add(30*time.Second), "RequestTimeTooSkewed"))
		assert.Equal(t, 30*time.Second, skew.Correction())
	})
	t.Run("Overwrites", func(t *testing.T) {
		var skew SkewCorrector
		assert.True(t, skew.Update(at, at.Add(10*time.Minute), ""))
		assert.True(t, skew.Update(at, at.Add(5*time.Minute), ""))
		assert.Equal(t, 5*time.Minute, skew.Correction())
	})
	t.Run("Negative", func(t *testing.T) {
		var skew SkewCorrector
		assert.True(t, skew.Update(at, at.Add(-5*time.Minute), ""))
		assert.Equal(t, -5*time.Minute, skew.Correction())
	})
}

func TestSkewCorrector_FromResponse(t *testing.T) {
	at := time.Date(2020, 10, 16, 19, 56, 0, 0, time.UTC)

	t.Run("DateHeader", func(t *testing.T) {
		resp := &http.Response{Header: http.Header{}}
		resp.Header.Set("Date", at.Add(5*time.Minute).Format(http.TimeFormat))

		var skew SkewCorrector
		assert.True(t, skew.FromResponse(at, resp, ""))
		assert.Equal(t, 5*time.Minute, skew.Correction())
	})
	t.Run("NoDateHeader", func(t *testing.T) {
		var skew SkewCorrector
		assert.False(t, skew.FromResponse(at, &http.Response{Header: http.Header{}}, "RequestExpired"))
		assert.Zero(t, skew.Correction())
	})
	t.Run("NilResponse", func(t *testing.T) {
		var skew SkewCorrector
		assert.False(t, skew.FromResponse(at, nil, ""))
	})
}
