package aws4

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"path"
	"strings"
	"unicode/utf8"
)

const (
	amzDateTimeFormat = "20060102T150405Z"
	amzDateFormat     = "20060102"
)

// SigningAlgorithm is the only signing algorithm supported by this package.
const SigningAlgorithm = "AWS4-HMAC-SHA256"

const (
	amzUnsignedPayload          = "UNSIGNED-PAYLOAD"
	amzStreamingPayload         = "STREAMING-AWS4-HMAC-SHA256-PAYLOAD"
	amzStreamingPayloadTrailer  = "STREAMING-AWS4-HMAC-SHA256-PAYLOAD-TRAILER"
	amzStreamingUnsignedTrailer = "STREAMING-UNSIGNED-PAYLOAD-TRAILER"

	// Hex SHA-256 of the empty string, the payload hash of any empty body.
	emptyPayloadSha256 = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
)

const (
	headerAmzDate          = "X-Amz-Date"
	headerAmzContentSha256 = "X-Amz-Content-Sha256"
	headerAmzSecurityToken = "X-Amz-Security-Token"
	headerAmzDecodedLength = "X-Amz-Decoded-Content-Length"
	headerAmzTrailer       = "X-Amz-Trailer"

	queryAmzAlgorithm     = "X-Amz-Algorithm"
	queryAmzCredential    = "X-Amz-Credential"
	queryAmzDate          = "X-Amz-Date"
	queryAmzExpires       = "X-Amz-Expires"
	queryAmzSecurityToken = "X-Amz-Security-Token"
	queryAmzSignedHeaders = "X-Amz-SignedHeaders"
	queryAmzSignature     = "X-Amz-Signature"
)

func sumHmacSha256(secret, data []byte) []byte {
	h := hmac.New(sha256.New, secret)
	h.Write(data)

	return h.Sum(nil)
}

func sumSha256Hex(data []byte) []byte {
	sum := sha256.Sum256(data)

	var out = make([]byte, hex.EncodedLen(len(sum)))
	hex.Encode(out, sum[:])
	return out
}

// wipe zeroes derived key material once it is no longer needed.
func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// Trim leading and trailing spaces and replace sequential spaces with one space, following Trimall()
// in http://docs.aws.amazon.com/general/latest/gr/sigv4-create-canonical-request.html
func trimAll(input string) string {
	// Compress adjacent spaces (a space is determined by
	// unicode.IsSpace() internally here) to one space and return
	return strings.Join(strings.Fields(input), " ")
}

// encodePath percent-encodes a URL path using the RFC 3986 unreserved character rules.
// Characters that are already percent-encoded are not treated specially; encoding an
// already-encoded path encodes the % signs a second time, which is exactly what
// services that decode the path once server-side expect.
func encodePath(pathName string) string {
	var encodedPathname strings.Builder
	for _, s := range pathName {
		if 'A' <= s && s <= 'Z' || 'a' <= s && s <= 'z' || '0' <= s && s <= '9' { // §2.3 Unreserved characters (mark)
			encodedPathname.WriteRune(s)
			continue
		}
		switch s {
		case '-', '_', '.', '~', '/': // §2.3 Unreserved characters (mark)
			encodedPathname.WriteRune(s)
			continue
		default:
			l := utf8.RuneLen(s)
			if l < 0 {
				// if utf8 cannot convert return the same string as is
				return pathName
			}
			u := make([]byte, l)
			utf8.EncodeRune(u, s)
			for _, r := range u {
				hexEncoded := hex.EncodeToString([]byte{r})
				encodedPathname.WriteString("%" + strings.ToUpper(hexEncoded))
			}
		}
	}
	return encodedPathname.String()
}

// normalizePath resolves "." and ".." segments and collapses duplicate slashes.
// A trailing slash survives normalization because services distinguish directory keys.
func normalizePath(p string) string {
	if p == "" {
		return "/"
	}

	trailing := strings.HasSuffix(p, "/") && len(p) > 1
	p = path.Clean(p)
	if trailing && !strings.HasSuffix(p, "/") {
		p += "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}

	return p
}
