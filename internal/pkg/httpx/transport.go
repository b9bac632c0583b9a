package httpx

import (
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	kflate "github.com/klauspost/compress/flate"
	kgzip "github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

const acceptEncoding = "gzip, deflate, br, zstd"

// decoders turn a compressed response body into a plain one. The returned
// ReadCloser must also close the original body.
var decoders = map[string]func(body io.ReadCloser) (io.ReadCloser, error){
	"gzip": func(body io.ReadCloser) (io.ReadCloser, error) {
		r, err := kgzip.NewReader(body)
		if err != nil {
			return nil, err
		}
		return &bodyReader{Reader: r, closers: []io.Closer{r, body}}, nil
	},
	"deflate": func(body io.ReadCloser) (io.ReadCloser, error) {
		r := kflate.NewReader(body)
		return &bodyReader{Reader: r, closers: []io.Closer{r, body}}, nil
	},
	"br": func(body io.ReadCloser) (io.ReadCloser, error) {
		return &bodyReader{Reader: brotli.NewReader(body), closers: []io.Closer{body}}, nil
	},
	"zstd": func(body io.ReadCloser) (io.ReadCloser, error) {
		d, err := zstd.NewReader(body)
		if err != nil {
			return nil, err
		}
		return &bodyReader{Reader: d, closers: []io.Closer{zstdCloser{d}, body}}, nil
	},
}

// decodingTransport advertises the encodings above and decodes responses
// transparently. Unknown or broken encodings are passed through untouched.
type decodingTransport struct {
	base http.RoundTripper
}

// NewDecodingTransport wraps base, which defaults to a clone of
// http.DefaultTransport. The stdlib gzip handling is switched off so it does
// not compete with ours.
func NewDecodingTransport(base *http.Transport) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport.(*http.Transport).Clone()
	}
	base.DisableCompression = true
	return &decodingTransport{base: base}
}

func (t *decodingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Accept-Encoding") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("Accept-Encoding", acceptEncoding)
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	decode, ok := decoders[strings.ToLower(resp.Header.Get("Content-Encoding"))]
	if !ok {
		return resp, nil
	}
	body, err := decode(resp.Body)
	if err != nil {
		return resp, nil
	}

	resp.Body = body
	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1
	return resp, nil
}

type bodyReader struct {
	io.Reader
	closers []io.Closer
}

func (b *bodyReader) Close() error {
	var first error
	for _, c := range b.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type zstdCloser struct {
	d *zstd.Decoder
}

func (z zstdCloser) Close() error {
	z.d.Close()
	return nil
}
