package aws4

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// deriveSigningKey derives the 32 byte request signing key through the four
// chained HMAC-SHA256 stages of SigV4, seeded by "AWS4" + the secret access key.
// Callers own the returned key and should wipe it once the signature is computed.
func deriveSigningKey(secretAccessKey string, at time.Time, region, service string) []byte {
	var signed = sumHmacSha256([]byte("AWS4"+secretAccessKey), at.AppendFormat(nil, amzDateFormat))
	signed = sumHmacSha256(signed, []byte(region))
	signed = sumHmacSha256(signed, []byte(service))
	signed = sumHmacSha256(signed, []byte("aws4_request"))

	return signed
}

// appendCredentialScope appends "{yyyymmdd}/{region}/{service}/aws4_request" to b.
func appendCredentialScope(b []byte, at time.Time, region, service string) []byte {
	b = at.AppendFormat(b, amzDateFormat)
	b = append(b, '/')
	b = append(b, region...)
	b = append(b, '/')
	b = append(b, service...)
	b = append(b, "/aws4_request"...)

	return b
}

// buildStringToSign builds the final signature input from the canonical request.
func buildStringToSign(at time.Time, region, service string, canonicalRequest []byte) []byte {
	var b bytes.Buffer

	b.WriteString(SigningAlgorithm)
	b.WriteRune('\n')

	// timeStampISO8601Format
	b.WriteString(at.Format(amzDateTimeFormat))
	b.WriteRune('\n')

	// Scope
	b.Write(appendCredentialScope(nil, at, region, service))
	b.WriteRune('\n')

	// Hex(SHA256Hash(<CanonicalRequest>))
	h := sha256.New()
	h.Write(canonicalRequest)
	hex.NewEncoder(&b).Write(h.Sum(nil))

	return b.Bytes()
}

// signature computes HMAC-SHA256(key, stringToSign). The result is raw bytes;
// use hex encoding for the wire representation.
func signature(signingKey, stringToSign []byte) []byte {
	return sumHmacSha256(signingKey, stringToSign)
}
