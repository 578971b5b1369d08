package layout

import (
	"io"

	"github.com/opencontainers/go-digest"
)

// DigestWriter wraps an inner sink and feeds every byte written through it
// into a running hash while forwarding the bytes unchanged. Writers nest:
// placing one DigestWriter around a tar stream and another around the gzip
// output beneath it yields the uncompressed and compressed digests of a
// layer in a single pass.
type DigestWriter struct {
	inner    io.Writer
	digester digest.Digester
}

// NewDigestWriter wraps w with a canonical (sha256) digest accumulator
func NewDigestWriter(w io.Writer) *DigestWriter {
	return &DigestWriter{
		inner:    w,
		digester: digest.Canonical.Digester(),
	}
}

// Write forwards p to the inner sink and hashes the bytes that were
// accepted. Hash state only ever covers bytes the sink actually took.
func (dw *DigestWriter) Write(p []byte) (int, error) {
	n, err := dw.inner.Write(p)
	if n > 0 {
		dw.digester.Hash().Write(p[:n])
	}
	return n, err
}

// Finish returns the digest of everything written and the wrapped inner
// sink, so callers can unwind a stack of writers and recover the sink at
// the bottom. The writer must not be used after Finish.
func (dw *DigestWriter) Finish() (digest.Digest, io.Writer) {
	return dw.digester.Digest(), dw.inner
}
