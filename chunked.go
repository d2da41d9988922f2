package aws4

import (
	"bytes"
	"context"
	"encoding/hex"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	chunkAlgorithm        = "AWS4-HMAC-SHA256-PAYLOAD"
	chunkTrailerAlgorithm = "AWS4-HMAC-SHA256-TRAILER"

	chunkSignatureExt    = ";chunk-signature="
	trailerSignatureName = "x-amz-trailer-signature"
)

// A Trailer is a trailing header emitted after the body of an aws-chunked
// request. Its value may be resolved lazily, typically a checksum only known
// once the whole body has been read. The value is assigned exactly once;
// emission of the trailer block waits until every declared trailer resolves.
type Trailer struct {
	name string

	once  sync.Once
	done  chan struct{}
	value string
}

// NewTrailer declares a trailing header whose value is resolved later.
func NewTrailer(name string) *Trailer {
	return &Trailer{
		name: strings.ToLower(name),
		done: make(chan struct{}),
	}
}

// StaticTrailer declares a trailing header with an immediately known value.
func StaticTrailer(name, value string) *Trailer {
	t := NewTrailer(name)
	t.Resolve(value)

	return t
}

func (t *Trailer) Name() string { return t.name }

// Resolve assigns the trailer value. Only the first call has any effect.
func (t *Trailer) Resolve(value string) {
	t.once.Do(func() {
		t.value = value
		close(t.done)
	})
}

func (t *Trailer) wait(ctx context.Context) (string, error) {
	select {
	case <-t.done:
		return t.value, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

type chunkedState int

const (
	chunkStateData chunkedState = iota
	chunkStateTrailers
	chunkStateEOF
)

// ChunkedReader frames a byte source as the aws-chunked transfer encoding,
// computing a signature for every chunk chained from the previous chunk's
// signature. Exactly one ChunkedReader is bound to one request attempt; the
// transport drives it by successive reads. It is not safe for concurrent use.
type ChunkedReader struct {
	ctx context.Context
	src io.Reader

	signingKey []byte
	seed       []byte
	prev       []byte
	amzDate    string
	scope      string

	signed   bool
	trailers []*Trailer

	buf   bytes.Buffer
	chunk []byte
	state chunkedState
	err   error
}

func newChunkedReader(ctx context.Context, src io.Reader, signingKey, seedSignature []byte, at time.Time, region, service string, chunkSize int, signed bool, trailers []*Trailer) *ChunkedReader {
	// Trailers are emitted and hashed in a deterministic order.
	sorted := make([]*Trailer, len(trailers))
	copy(sorted, trailers)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].name < sorted[j].name })

	return &ChunkedReader{
		ctx:        ctx,
		src:        src,
		signingKey: signingKey,
		seed:       seedSignature,
		prev:       seedSignature,
		amzDate:    at.Format(amzDateTimeFormat),
		scope:      string(appendCredentialScope(nil, at, region, service)),
		signed:     signed,
		trailers:   sorted,
		chunk:      make([]byte, chunkSize),
	}
}

// Read implements io.Reader, producing the next encoded bytes of the stream.
// Cancellation of the construction context is observed at frame boundaries
// only, so a consumer never sees a partially written chunk.
func (cr *ChunkedReader) Read(p []byte) (int, error) {
	for cr.buf.Len() == 0 {
		if cr.err != nil {
			return 0, cr.err
		}
		if err := cr.ctx.Err(); err != nil {
			cr.err = err
			return 0, err
		}
		if err := cr.fill(); err != nil {
			cr.err = err
			return 0, err
		}
	}

	return cr.buf.Read(p)
}

// Close wipes the derived signing key and closes the underlying source if it
// is a closer.
func (cr *ChunkedReader) Close() error {
	wipe(cr.signingKey)
	if cr.err == nil {
		cr.err = io.EOF
	}

	if closer, ok := cr.src.(io.Closer); ok {
		return closer.Close()
	}

	return nil
}

// Reset restarts the signature chain from the seed so the body can be replayed
// for a retried attempt. It fails with *UnsignableBodyError when the
// underlying source cannot seek back to the start.
func (cr *ChunkedReader) Reset() error {
	seeker, ok := cr.src.(io.Seeker)
	if !ok {
		return &UnsignableBodyError{WrappedError{Cause: errBodyNotReplayable}}
	}

	if _, err := seeker.Seek(0, io.SeekStart); err != nil {
		return err
	}

	cr.buf.Reset()
	cr.prev = cr.seed
	cr.state = chunkStateData
	cr.err = nil

	return nil
}

// fill appends the next frame of the stream to the internal buffer, or returns
// io.EOF once the terminal chunk and any trailer block have been produced.
func (cr *ChunkedReader) fill() error {
	switch cr.state {
	case chunkStateData:
		n, err := io.ReadFull(cr.src, cr.chunk)
		if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
			return err
		}

		if n > 0 {
			cr.appendFrame(cr.chunk[:n])
		}

		if n < len(cr.chunk) {
			// Source exhausted. Terminal zero-length chunk follows the same chain.
			cr.appendTerminal()

			if len(cr.trailers) > 0 {
				cr.state = chunkStateTrailers
			} else {
				// Empty trailer section still gets its terminating CRLF.
				cr.buf.WriteString("\r\n")
				cr.state = chunkStateEOF
			}
		}

		return nil
	case chunkStateTrailers:
		if err := cr.appendTrailers(); err != nil {
			return err
		}

		cr.state = chunkStateEOF
		return nil
	default:
		return io.EOF
	}
}

// nextChunkSignature signs the chunk and advances the signature chain.
func (cr *ChunkedReader) nextChunkSignature(data []byte) []byte {
	var sts bytes.Buffer
	sts.WriteString(chunkAlgorithm)
	sts.WriteRune('\n')
	sts.WriteString(cr.amzDate)
	sts.WriteRune('\n')
	sts.WriteString(cr.scope)
	sts.WriteRune('\n')
	hex.NewEncoder(&sts).Write(cr.prev)
	sts.WriteRune('\n')
	sts.WriteString(emptyPayloadSha256)
	sts.WriteRune('\n')
	sts.Write(sumSha256Hex(data))

	sig := sumHmacSha256(cr.signingKey, sts.Bytes())
	cr.prev = sig

	return sig
}

func (cr *ChunkedReader) appendFrame(data []byte) {
	cr.buf.WriteString(strconv.FormatInt(int64(len(data)), 16))
	if cr.signed {
		cr.buf.WriteString(chunkSignatureExt)
		hex.NewEncoder(&cr.buf).Write(cr.nextChunkSignature(data))
		statChunksSigned.Add(1)
	}
	cr.buf.WriteString("\r\n")
	cr.buf.Write(data)
	cr.buf.WriteString("\r\n")
}

func (cr *ChunkedReader) appendTerminal() {
	cr.buf.WriteByte('0')
	if cr.signed {
		cr.buf.WriteString(chunkSignatureExt)
		hex.NewEncoder(&cr.buf).Write(cr.nextChunkSignature(nil))
		statChunksSigned.Add(1)
	}
	cr.buf.WriteString("\r\n")
}

// appendTrailers waits for every declared trailer value, then emits the
// trailer block and, for signed streams, the trailer signature. The hashed
// trailer text uses bare newlines; the wire format uses CRLF.
func (cr *ChunkedReader) appendTrailers() error {
	var values = make([]string, len(cr.trailers))
	for i, t := range cr.trailers {
		value, err := t.wait(cr.ctx)
		if err != nil {
			return err
		}
		if strings.ContainsAny(value, "\r\n") {
			return &CanonicalizationError{
				Header:  t.name,
				Message: "trailer value contains an embedded newline",
			}
		}

		values[i] = trimAll(value)
	}

	var block bytes.Buffer
	for i, t := range cr.trailers {
		block.WriteString(t.name)
		block.WriteRune(':')
		block.WriteString(values[i])
		block.WriteRune('\n')

		cr.buf.WriteString(t.name)
		cr.buf.WriteRune(':')
		cr.buf.WriteString(values[i])
		cr.buf.WriteString("\r\n")
	}

	if cr.signed {
		cr.buf.WriteString(trailerSignatureName)
		cr.buf.WriteRune(':')
		hex.NewEncoder(&cr.buf).Write(cr.trailerSignature(block.Bytes()))
		cr.buf.WriteString("\r\n")
	}
	cr.buf.WriteString("\r\n")

	return nil
}

func (cr *ChunkedReader) trailerSignature(block []byte) []byte {
	var sts bytes.Buffer
	sts.WriteString(chunkTrailerAlgorithm)
	sts.WriteRune('\n')
	sts.WriteString(cr.amzDate)
	sts.WriteRune('\n')
	sts.WriteString(cr.scope)
	sts.WriteRune('\n')
	hex.NewEncoder(&sts).Write(cr.prev)
	sts.WriteRune('\n')
	sts.Write(sumSha256Hex(block))

	sig := sumHmacSha256(cr.signingKey, sts.Bytes())
	cr.prev = sig

	return sig
}

// ChunkedLength computes the encoded content length of a signed aws-chunked
// body of decodedLength bytes split into chunks of chunkSize. It does not
// account for a trailer block, whose length is unknown until the trailer
// values resolve; requests with trailers are sent without a Content-Length.
func ChunkedLength(decodedLength int64, chunkSize int) int64 {
	frame := func(n int64) int64 {
		header := int64(len(strconv.FormatInt(n, 16))) + int64(len(chunkSignatureExt)) + 64 + 2
		return header + n + 2
	}

	size := int64(chunkSize)
	total := (decodedLength / size) * frame(size)
	if rem := decodedLength % size; rem > 0 {
		total += frame(rem)
	}

	// Terminal chunk has no payload, followed by the empty trailer section
	// terminator.
	total += int64(len("0")) + int64(len(chunkSignatureExt)) + 64 + 2 + 2

	return total
}
