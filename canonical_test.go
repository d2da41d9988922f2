package aws4

import (
	"bytes"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

// https://docs.aws.amazon.com/AmazonS3/latest/API/sig-v4-header-based-auth.html

func testCanonicalRequest() *http.Request {
	req, _ := http.NewRequest(http.MethodGet, "https://examplebucket.s3.amazonaws.com/?prefix=J&max-keys=2", new(bytes.Buffer))

	req.Header.Set("Host", "examplebucket.s3.amazonaws.com")
	req.Header.Set("x-amz-content-sha256", "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855")
	req.Header.Set("x-amz-date", "20130524T000000Z")

	return req
}

func Test_buildCanonicalRequest(t *testing.T) {
	computed, err := buildCanonicalRequest(
		testCanonicalRequest(),
		[]byte("e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"),
		[]string{"host", "x-amz-content-sha256", "x-amz-date"},
		false, false,
	)
	assert.NoError(t, err)
	assert.Equal(t, `GET
/
max-keys=2&prefix=J
host:examplebucket.s3.amazonaws.com
x-amz-content-sha256:e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855
x-amz-date:20130524T000000Z

host;x-amz-content-sha256;x-amz-date
e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855`, string(computed))
}

func Test_buildCanonicalRequest_Idempotent(t *testing.T) {
	first, err := buildCanonicalRequest(testCanonicalRequest(), []byte(amzUnsignedPayload), []string{"host", "x-amz-content-sha256", "x-amz-date"}, true, true)
	assert.NoError(t, err)

	second, err := buildCanonicalRequest(testCanonicalRequest(), []byte(amzUnsignedPayload), []string{"host", "x-amz-content-sha256", "x-amz-date"}, true, true)
	assert.NoError(t, err)

	assert.Equal(t, first, second)
}

func Test_buildCanonicalRequest_RejectsEmbeddedNewline(t *testing.T) {
	for _, value := range []string{"multi\nline", "carriage\rreturn", "smuggled\r\nx-amz-date: 20300101T000000Z"} {
		req := testCanonicalRequest()
		req.Header.Set("x-amz-archive-description", value)

		_, err := buildCanonicalRequest(req, []byte(amzUnsignedPayload), []string{"host", "x-amz-archive-description"}, false, false)
		assert.Error(t, err)

		var canonicalization *CanonicalizationError
		assert.True(t, errors.As(err, &canonicalization))
		assert.Equal(t, "x-amz-archive-description", canonicalization.Header)
	}
}

func Test_buildCanonicalRequest_RejectsEmbeddedNewlineInHost(t *testing.T) {
	req := testCanonicalRequest()
	req.Header.Set("Host", "examplebucket.s3.amazonaws.com\r\nx-amz-date: 20300101T000000Z")

	_, err := buildCanonicalRequest(req, []byte(amzUnsignedPayload), []string{"host"}, false, false)
	assert.Error(t, err)

	var canonicalization *CanonicalizationError
	assert.True(t, errors.As(err, &canonicalization))
	assert.Equal(t, "host", canonicalization.Header)
}

func Test_buildCanonicalRequest_MultiValueHeaders(t *testing.T) {
	req := testCanonicalRequest()
	req.Header.Add("x-amz-meta-tag", "  alpha  value ")
	req.Header.Add("x-amz-meta-tag", "beta")

	computed, err := buildCanonicalRequest(req, []byte(amzUnsignedPayload), []string{"host", "x-amz-meta-tag"}, false, false)
	assert.NoError(t, err)
	assert.Contains(t, string(computed), "x-amz-meta-tag:alpha value,beta\n")
}

func Test_canonicalQueryString(t *testing.T) {
	t.Run("empty value renders key=", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "https://example.amazonaws.com/?acl&x-id=GetObject", nil)
		assert.Equal(t, "acl=&x-id=GetObject", canonicalQueryString(req))
	})

	t.Run("sorted by key then value", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "https://example.amazonaws.com/?b=z&b=a&a=1", nil)
		assert.Equal(t, "a=1&b=a&b=z", canonicalQueryString(req))
	})

	t.Run("space encodes as %20", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "https://example.amazonaws.com/?prefix=my+photos", nil)
		assert.Equal(t, "prefix=my%20photos", canonicalQueryString(req))
	})

	t.Run("excludes the signature parameter", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "https://example.amazonaws.com/?X-Amz-Signature=deadbeef&acl=", nil)
		assert.Equal(t, "acl=", canonicalQueryString(req))
	})
}

func Test_canonicalURI(t *testing.T) {
	t.Run("empty path renders /", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "https://example.amazonaws.com", nil)
		assert.Equal(t, "/", canonicalURI(req, false, false))
	})

	t.Run("single encoding", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "https://example.amazonaws.com/documents%20and%20settings/", nil)
		assert.Equal(t, "/documents%20and%20settings/", canonicalURI(req, false, false))
	})

	t.Run("double encoding", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "https://example.amazonaws.com/documents%20and%20settings/", nil)
		assert.Equal(t, "/documents%2520and%2520settings/", canonicalURI(req, true, false))
	})

	t.Run("path normalization", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "https://example.amazonaws.com/a//b/../c/./d", nil)
		assert.Equal(t, "/a/c/d", canonicalURI(req, false, true))
	})

	t.Run("normalization keeps the trailing slash", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "https://example.amazonaws.com/a//b/", nil)
		assert.Equal(t, "/a/b/", canonicalURI(req, false, true))
	})
}

func Test_signedHeaderNames(t *testing.T) {
	req, _ := http.NewRequest(http.MethodPost, "https://example.amazonaws.com/", bytes.NewReader([]byte("payload")))
	req.Header.Set("X-Amz-Date", "20130524T000000Z")
	req.Header.Set("Authorization", "already signed")
	req.Header.Set("User-Agent", "test")
	req.Header.Set("Expect", "100-continue")

	assert.Equal(t, []string{"content-length", "host", "x-amz-date"}, signedHeaderNames(req))
}
