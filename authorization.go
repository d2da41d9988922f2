package aws4

import (
	"encoding/hex"
	"time"
)

// growSlice grows slice b to length n.
// If cap(b) < n then a new slice is allocated and the original contents are copied into it
func growSlice(b []byte, n int) []byte {
	if len(b)+n <= cap(b) {
		return b[:len(b)+n]
	}

	grow := make([]byte, len(b)+n)
	copy(grow, b)

	return grow
}

// Credential is the credential field of an Authorization header or the
// X-Amz-Credential query parameter: the access key bound to its scope.
type Credential struct {
	AccessKeyID string
	Date        time.Time
	Region      string
	Service     string
}

func (c Credential) AppendFormat(b []byte) []byte {
	b = append(b, c.AccessKeyID...)
	b = append(b, '/')
	b = appendCredentialScope(b, c.Date, c.Region, c.Service)

	return b
}

// Authorization is the value of a SigV4 Authorization header.
type Authorization struct {
	Credential    Credential
	SignedHeaders []string
	Signature     []byte // raw decoded hex
}

func (a Authorization) AppendFormat(b []byte) []byte {
	b = append(b, SigningAlgorithm...)
	b = append(b, ' ')
	b = append(b, "Credential="...)
	b = a.Credential.AppendFormat(b)
	b = append(b, ", SignedHeaders="...)

	for i, hdr := range a.SignedHeaders {
		if i > 0 {
			b = append(b, ';')
		}
		b = append(b, hdr...)
	}

	b = append(b, ", Signature="...)
	l := len(b)
	b = growSlice(b, hex.EncodedLen(len(a.Signature)))
	hex.Encode(b[l:], a.Signature)

	return b
}
