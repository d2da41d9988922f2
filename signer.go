package aws4

import (
	"context"
	"encoding/hex"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/seqra/aws4/credentials"
	"go.uber.org/zap"
)

// Signer computes SigV4 signatures for HTTP requests.
//
// Signing an attempt is all-or-nothing: on any failure the request is left
// untouched. Every attempt, including a retry of the same request, recomputes
// the canonical request, the signing key and the signature from scratch; a
// signature is valid for exactly one canonical request text.
type Signer struct {
	// Credentials yields the identity requests are signed as.
	Credentials credentials.Source

	// Skew, if set, supplies a clock correction offset added to every signing
	// timestamp. Share one instance across the requests of a client.
	Skew *SkewCorrector

	// Log, if set, writes the canonical request and string to sign at debug
	// level. Neither contains secret material.
	Log *zap.Logger

	// timeNow is a function that returns the current time.
	// Used for testing, if nil then time.Now is used.
	timeNow func() time.Time
}

func (s *Signer) now() time.Time {
	if s.timeNow == nil {
		return time.Now()
	}
	return s.timeNow()
}

// signingTime is the skew-corrected timestamp bound into the signature.
func (s *Signer) signingTime() time.Time {
	t := s.now().UTC()
	if s.Skew != nil {
		t = t.Add(s.Skew.Correction())
	}

	return t
}

func (s *Signer) resolveCredentials(ctx context.Context) (credentials.Credentials, error) {
	if s.Credentials == nil {
		return credentials.Credentials{}, &ConfigurationError{Message: "no credentials source"}
	}

	return s.Credentials.Resolve(ctx)
}

func (s *Signer) debugSignature(canonicalRequest, stringToSign []byte) {
	if s.Log == nil {
		return
	}

	s.Log.Debug("computed request signature",
		zap.ByteString("canonical_request", canonicalRequest),
		zap.ByteString("string_to_sign", stringToSign),
	)
}

// resolveHash picks the effective hash specification for a buffered payload.
func resolveHash(cfg *SignerConfig, payload []byte) HashSpecification {
	if cfg.Hash != HashDefault {
		return cfg.Hash
	}
	if len(payload) == 0 {
		return HashEmptyBody
	}

	return HashCalculateFromPayload
}

// Sign computes and attaches a header-based signature for the request using
// the given request payload. payload should be the contents of r.Body.
// On success r carries X-Amz-Date, X-Amz-Security-Token for session
// credentials, optionally X-Amz-Content-Sha256, and the Authorization header.
func (s *Signer) Sign(ctx context.Context, r *http.Request, payload []byte, cfg *SignerConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.SignatureType != SignatureHeader {
		return &ConfigurationError{Message: "Sign requires a header signature type, use Presign for presigned URLs"}
	}

	hash := resolveHash(cfg, payload)
	if hash.Streaming() {
		return &ConfigurationError{Message: "streaming hash specification requires SignChunked"}
	}

	creds, err := s.resolveCredentials(ctx)
	if err != nil {
		return err
	}

	t := s.signingTime()

	hdr := r.Header.Clone()
	if hdr == nil {
		hdr = make(http.Header)
	}

	hdr.Set(headerAmzDate, t.Format(amzDateTimeFormat))
	if creds.SessionToken != "" && !cfg.OmitSessionToken {
		hdr.Set(headerAmzSecurityToken, creds.SessionToken)
	}

	payloadHash := hash.payloadHash(payload)
	if cfg.SignedBodyHeader == SignedBodyHeaderContentSha256 {
		hdr.Set(headerAmzContentSha256, string(payloadHash))
	}

	work := new(http.Request)
	*work = *r
	work.Header = hdr

	signedHeaders := signedHeaderNames(work)

	canonicalRequest, err := buildCanonicalRequest(work, payloadHash, signedHeaders, cfg.DoubleURIEncode, cfg.NormalizeURIPath)
	if err != nil {
		return err
	}

	signingKey := deriveSigningKey(creds.SecretAccessKey, t, cfg.Region, cfg.Service)
	defer wipe(signingKey)

	stringToSign := buildStringToSign(t, cfg.Region, cfg.Service, canonicalRequest)
	s.debugSignature(canonicalRequest, stringToSign)

	auth := Authorization{
		Credential: Credential{
			AccessKeyID: creds.AccessKeyID,
			Date:        t,
			Region:      cfg.Region,
			Service:     cfg.Service,
		},
		SignedHeaders: signedHeaders,
		Signature:     signature(signingKey, stringToSign),
	}

	hdr.Set("Authorization", string(auth.AppendFormat(nil)))
	r.Header = hdr

	statSignatures.WithLabelValues("header").Add(1)
	return nil
}

// Presign computes a query-based signature and returns the presigned URL.
// The canonical request is built with every other X-Amz-* parameter already
// present and X-Amz-Signature absent; the signature parameter is appended
// only after signing. The default hash specification for presigned URLs is
// UNSIGNED-PAYLOAD since the payload is not known when the URL is shared.
func (s *Signer) Presign(ctx context.Context, r *http.Request, cfg *SignerConfig) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", err
	}
	if cfg.SignatureType != SignatureQuery {
		return "", &ConfigurationError{Message: "Presign requires a query signature type"}
	}

	hash := cfg.Hash
	if hash == HashDefault {
		hash = HashUnsignedPayload
	}
	if hash.Streaming() {
		return "", &ConfigurationError{Message: "a presigned URL cannot sign a streaming body"}
	}

	creds, err := s.resolveCredentials(ctx)
	if err != nil {
		return "", err
	}

	t := s.signingTime()

	credential := Credential{
		AccessKeyID: creds.AccessKeyID,
		Date:        t,
		Region:      cfg.Region,
		Service:     cfg.Service,
	}

	u := *r.URL
	query := u.Query()
	query.Set(queryAmzAlgorithm, SigningAlgorithm)
	query.Set(queryAmzCredential, string(credential.AppendFormat(nil)))
	query.Set(queryAmzDate, t.Format(amzDateTimeFormat))
	query.Set(queryAmzExpires, strconv.FormatInt(int64(cfg.Expires/time.Second), 10))
	if creds.SessionToken != "" && !cfg.OmitSessionToken {
		query.Set(queryAmzSecurityToken, creds.SessionToken)
	}

	work := new(http.Request)
	*work = *r
	work.URL = &u

	signedHeaders := signedHeaderNames(work)
	query.Set(queryAmzSignedHeaders, strings.Join(signedHeaders, ";"))

	u.RawQuery = query.Encode()

	payloadHash := hash.payloadHash(nil)

	canonicalRequest, err := buildCanonicalRequest(work, payloadHash, signedHeaders, cfg.DoubleURIEncode, cfg.NormalizeURIPath)
	if err != nil {
		return "", err
	}

	signingKey := deriveSigningKey(creds.SecretAccessKey, t, cfg.Region, cfg.Service)
	defer wipe(signingKey)

	stringToSign := buildStringToSign(t, cfg.Region, cfg.Service, canonicalRequest)
	s.debugSignature(canonicalRequest, stringToSign)

	sig := signature(signingKey, stringToSign)

	query.Set(queryAmzSignature, hex.EncodeToString(sig))
	u.RawQuery = query.Encode()

	r.URL = &u

	statSignatures.WithLabelValues("query").Add(1)
	return u.String(), nil
}

// SignChunked signs the header stage of a streaming request, then replaces
// r.Body with a ChunkedReader that frames the original body as aws-chunked,
// chaining every chunk signature from the seed signature computed here.
// The returned reader is also r.Body; it must be consumed by exactly one
// transport attempt and reset before any replay.
//
// The decoded length of the body must be known through r.ContentLength so it
// can be carried in X-Amz-Decoded-Content-Length.
func (s *Signer) SignChunked(ctx context.Context, r *http.Request, cfg *SignerConfig, trailers ...*Trailer) (*ChunkedReader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.SignatureType != SignatureHeader {
		return nil, &ConfigurationError{Message: "chunked signing uses header signatures"}
	}

	hash := cfg.Hash
	if hash == HashDefault {
		if len(trailers) > 0 {
			hash = HashStreamingSignedTrailers
		} else {
			hash = HashStreamingSigned
		}
	}
	if !hash.Streaming() {
		return nil, &ConfigurationError{Message: "hash specification does not describe a streaming body"}
	}
	if (hash == HashStreamingSignedTrailers || hash == HashStreamingUnsignedTrailers) && len(trailers) == 0 {
		return nil, &ConfigurationError{Message: "trailer hash specification given without trailers"}
	}

	if r.Body == nil {
		return nil, &UnsignableBodyError{WrappedError{Cause: errNoStreamingBody}}
	}
	if r.ContentLength < 0 {
		return nil, &UnsignableBodyError{WrappedError{Cause: errUnknownDecodedLength}}
	}

	creds, err := s.resolveCredentials(ctx)
	if err != nil {
		return nil, err
	}

	t := s.signingTime()

	hdr := r.Header.Clone()
	if hdr == nil {
		hdr = make(http.Header)
	}

	hdr.Set(headerAmzDate, t.Format(amzDateTimeFormat))
	if creds.SessionToken != "" && !cfg.OmitSessionToken {
		hdr.Set(headerAmzSecurityToken, creds.SessionToken)
	}

	if encoding := hdr.Get("Content-Encoding"); encoding != "" {
		hdr.Set("Content-Encoding", "aws-chunked,"+encoding)
	} else {
		hdr.Set("Content-Encoding", "aws-chunked")
	}
	hdr.Set(headerAmzDecodedLength, strconv.FormatInt(r.ContentLength, 10))

	payloadHash := hash.payloadHash(nil)
	hdr.Set(headerAmzContentSha256, string(payloadHash))

	signed := hash != HashStreamingUnsignedTrailers

	var trailerNames []string
	for _, trailer := range trailers {
		trailerNames = append(trailerNames, trailer.Name())
	}
	if len(trailerNames) > 0 {
		sort.Strings(trailerNames)
		hdr.Set(headerAmzTrailer, strings.Join(trailerNames, ","))
	}

	// With trailers the encoded length depends on values not yet resolved, so
	// the request falls back to chunked transfer encoding. Without them the
	// encoded length is known exactly.
	encodedLength := int64(-1)
	if len(trailers) == 0 && signed {
		encodedLength = ChunkedLength(r.ContentLength, cfg.chunkSize())
	} else {
		hdr.Set("Transfer-Encoding", "chunked")
	}

	work := new(http.Request)
	*work = *r
	work.Header = hdr
	work.ContentLength = encodedLength

	signedHeaders := signedHeaderNames(work)

	canonicalRequest, err := buildCanonicalRequest(work, payloadHash, signedHeaders, cfg.DoubleURIEncode, cfg.NormalizeURIPath)
	if err != nil {
		return nil, err
	}

	signingKey := deriveSigningKey(creds.SecretAccessKey, t, cfg.Region, cfg.Service)

	stringToSign := buildStringToSign(t, cfg.Region, cfg.Service, canonicalRequest)
	s.debugSignature(canonicalRequest, stringToSign)

	// The header-stage signature seeds the chunk signature chain. The reader
	// takes ownership of the signing key and wipes it on Close.
	seed := signature(signingKey, stringToSign)

	auth := Authorization{
		Credential: Credential{
			AccessKeyID: creds.AccessKeyID,
			Date:        t,
			Region:      cfg.Region,
			Service:     cfg.Service,
		},
		SignedHeaders: signedHeaders,
		Signature:     seed,
	}

	hdr.Set("Authorization", string(auth.AppendFormat(nil)))

	reader := newChunkedReader(ctx, r.Body, signingKey, seed, t, cfg.Region, cfg.Service, cfg.chunkSize(), signed, trailers)

	r.Header = hdr
	r.ContentLength = encodedLength
	r.Body = reader

	statSignatures.WithLabelValues("seed").Add(1)
	return reader, nil
}
