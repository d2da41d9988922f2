package aws4

import (
	"errors"
	"time"
)

// SignatureType selects how the computed signature is carried on the request.
type SignatureType int

const (
	// SignatureHeader places the signature in the Authorization header.
	SignatureHeader SignatureType = iota
	// SignatureQuery places the signature in X-Amz-* query parameters,
	// producing a presigned URL.
	SignatureQuery
)

// HashSpecification determines the literal filling the canonical request's
// payload hash slot and whether the body is signed through the aws-chunked
// transfer encoding.
type HashSpecification int

const (
	// HashDefault lets the signer pick: an empty body hashes as the empty
	// string, otherwise the payload is buffered and hashed.
	HashDefault HashSpecification = iota
	// HashEmptyBody always signs the empty-string hash.
	HashEmptyBody
	// HashCalculateFromPayload hashes the full request payload.
	HashCalculateFromPayload
	// HashUnsignedPayload signs the UNSIGNED-PAYLOAD sentinel.
	HashUnsignedPayload
	// HashStreamingSigned signs each body chunk through a ChunkedReader.
	HashStreamingSigned
	// HashStreamingSignedTrailers is HashStreamingSigned plus a signed trailer block.
	HashStreamingSignedTrailers
	// HashStreamingUnsignedTrailers leaves chunks unsigned but declares trailers.
	HashStreamingUnsignedTrailers
)

// Streaming reports whether this specification engages the aws-chunked encoding.
func (h HashSpecification) Streaming() bool {
	switch h {
	case HashStreamingSigned, HashStreamingSignedTrailers, HashStreamingUnsignedTrailers:
		return true
	}
	return false
}

// payloadHash returns the canonical payload hash slot value for the given buffered payload.
func (h HashSpecification) payloadHash(payload []byte) []byte {
	switch h {
	case HashEmptyBody:
		return []byte(emptyPayloadSha256)
	case HashUnsignedPayload:
		return []byte(amzUnsignedPayload)
	case HashStreamingSigned:
		return []byte(amzStreamingPayload)
	case HashStreamingSignedTrailers:
		return []byte(amzStreamingPayloadTrailer)
	case HashStreamingUnsignedTrailers:
		return []byte(amzStreamingUnsignedTrailer)
	default:
		if len(payload) == 0 {
			return []byte(emptyPayloadSha256)
		}
		return sumSha256Hex(payload)
	}
}

// SignedBodyHeader controls whether the payload hash is echoed as a request header.
type SignedBodyHeader int

const (
	// SignedBodyHeaderNone adds no extra header.
	SignedBodyHeaderNone SignedBodyHeader = iota
	// SignedBodyHeaderContentSha256 sets X-Amz-Content-Sha256 to the payload hash.
	// Amazon S3 is an example of a service that requires this.
	SignedBodyHeaderContentSha256
)

const (
	minimumPresignedExpires = time.Second
	maximumPresignedExpires = time.Second * 604800
)

// DefaultChunkSize is the body chunk size used by SignChunked when the
// configuration does not set one. Services enforce a 8 KiB minimum for every
// chunk except the last.
const DefaultChunkSize = 64 * 1024

// SignerConfig carries the per-request signing parameters.
// Region and Service are required; everything else has a usable zero value.
type SignerConfig struct {
	Region  string
	Service string

	SignatureType SignatureType
	Hash          HashSpecification

	// DoubleURIEncode encodes the already percent-encoded canonical path a
	// second time. Required by most services; S3 is the notable exception.
	DoubleURIEncode bool
	// NormalizeURIPath resolves "." and ".." segments and collapses duplicate
	// slashes before canonicalization.
	NormalizeURIPath bool
	// OmitSessionToken leaves X-Amz-Security-Token out of the signed request
	// even when the resolved credentials carry a session token.
	OmitSessionToken bool

	SignedBodyHeader SignedBodyHeader

	// Expires bounds the validity of a presigned URL.
	// Only meaningful when SignatureType is SignatureQuery.
	Expires time.Duration

	// ChunkSize is the decoded size of each aws-chunked frame.
	// Zero means DefaultChunkSize.
	ChunkSize int
}

// Validate reports the first fatal problem with the configuration.
func (c *SignerConfig) Validate() error {
	if c == nil {
		return &ConfigurationError{Message: "no configuration given"}
	}
	if c.Region == "" {
		return &ConfigurationError{Message: "missing region"}
	}
	if c.Service == "" {
		return &ConfigurationError{Message: "missing service"}
	}

	switch c.SignatureType {
	case SignatureHeader:
		if c.Expires != 0 {
			return &ConfigurationError{Message: "expires is only meaningful for presigned URLs"}
		}
	case SignatureQuery:
		if c.Expires < minimumPresignedExpires || c.Expires > maximumPresignedExpires {
			return &ConfigurationError{Message: "invalid value for expires"}
		}
	default:
		return &ConfigurationError{Message: "unknown signature type"}
	}

	if c.ChunkSize < 0 {
		return &ConfigurationError{Message: "negative chunk size"}
	}

	return nil
}

func (c *SignerConfig) chunkSize() int {
	if c.ChunkSize == 0 {
		return DefaultChunkSize
	}
	return c.ChunkSize
}

var (
	errBodyNotReplayable    = errors.New("one-shot body was already consumed and cannot be replayed")
	errNoStreamingBody      = errors.New("request has no body to stream")
	errUnknownDecodedLength = errors.New("decoded content length of the body is not known")
)
