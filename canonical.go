package aws4

import (
	"bytes"
	"net/http"
	"net/textproto"
	"sort"
	"strconv"
	"strings"
)

// ignoredHeaders are never part of the signature.
// Transports and proxies rewrite them in flight, so signing them would
// invalidate an otherwise correct request.
var ignoredHeaders = map[string]struct{}{
	"authorization":     {},
	"user-agent":        {},
	"x-amzn-trace-id":   {},
	"expect":            {},
	"transfer-encoding": {},
}

// signedHeaderNames returns the sorted lower-case names of every request header
// eligible for signing. The host header is always included, content-length is
// included whenever the request carries a known non-zero length.
func signedHeaderNames(r *http.Request) []string {
	var names = []string{"host"}

	if r.ContentLength > 0 && r.Header.Get("Content-Length") == "" {
		names = append(names, "content-length")
	}

	for k := range r.Header {
		name := strings.ToLower(k)
		if _, ok := ignoredHeaders[name]; ok {
			continue
		}
		if name == "host" {
			continue
		}

		names = append(names, name)
	}

	sort.Strings(names)
	return names
}

func canonicalHeaderValue(r *http.Request, name string) (string, error) {
	if name == "host" {
		value := r.Header.Get("Host")
		if value == "" {
			value = r.Host
		}
		if value == "" {
			value = r.URL.Host
		}
		if strings.ContainsAny(value, "\r\n") {
			return "", &CanonicalizationError{
				Header:  name,
				Message: "value contains an embedded newline",
			}
		}
		return value, nil
	}

	values := r.Header[textproto.CanonicalMIMEHeaderKey(name)]
	if len(values) == 0 && name == "content-length" {
		return strconv.FormatInt(r.ContentLength, 10), nil
	}

	var b strings.Builder
	for idx, v := range values {
		// A header value smuggling a CR or LF would terminate its canonical line
		// early and let an attacker inject arbitrary signed text. Hard failure.
		if strings.ContainsAny(v, "\r\n") {
			return "", &CanonicalizationError{
				Header:  name,
				Message: "value contains an embedded newline",
			}
		}

		if idx > 0 {
			b.WriteByte(',')
		}
		b.WriteString(trimAll(v))
	}

	return b.String(), nil
}

// canonicalQueryString renders the request query with every key and value
// percent-encoded and sorted bytewise by (key, value). The X-Amz-Signature
// parameter is never part of the signature calculation.
func canonicalQueryString(r *http.Request) string {
	// Query string must be decoded, and then re-encoded to sort the query keys.
	var urlQuery = r.URL.Query()
	urlQuery.Del(queryAmzSignature)

	for key := range urlQuery {
		sort.Strings(urlQuery[key])
	}

	return strings.ReplaceAll(urlQuery.Encode(), "+", "%20")
}

// canonicalURI renders the request path in its canonical percent-encoded form.
func canonicalURI(r *http.Request, doubleEncode, normalize bool) string {
	p := r.URL.Path
	if normalize {
		p = normalizePath(p)
	}
	if p == "" {
		p = "/"
	}

	encoded := encodePath(p)
	if doubleEncode {
		encoded = encodePath(encoded)
	}

	return encoded
}

// buildCanonicalRequest deterministically renders the request into the SigV4
// canonical text form. It is a pure function of its inputs: the request is read
// but never mutated. signedHeaders must be sorted lower-case names.
func buildCanonicalRequest(r *http.Request, payloadHash []byte, signedHeaders []string, doubleEncode, normalize bool) ([]byte, error) {
	var b bytes.Buffer

	// HTTPMethod
	b.WriteString(r.Method)
	b.WriteRune('\n')

	// CanonicalURI
	b.WriteString(canonicalURI(r, doubleEncode, normalize))
	b.WriteRune('\n')

	// CanonicalQuerystring
	b.WriteString(canonicalQueryString(r))
	b.WriteRune('\n')

	// CanonicalHeaders
	for _, hdr := range signedHeaders {
		hdrName := strings.ToLower(hdr)

		value, err := canonicalHeaderValue(r, hdrName)
		if err != nil {
			return nil, err
		}

		b.WriteString(hdrName)
		b.WriteRune(':')
		b.WriteString(value)
		b.WriteRune('\n')
	}
	b.WriteRune('\n')

	// SignedHeaders
	for i, hdr := range signedHeaders {
		if i > 0 {
			b.WriteRune(';')
		}

		b.WriteString(strings.ToLower(hdr))
	}
	b.WriteRune('\n')

	// HashedPayload
	b.Write(payloadHash)

	return b.Bytes(), nil
}
