package httputil

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/require"
)

type headerTransport struct{}

func (headerTransport) RoundTrip(*http.Request) (*http.Response, error) { return nil, nil }

func TestNewClientDefaults(t *testing.T) {
	c := NewClient(nil)
	require.NotNil(t, c.Transport)
	require.Equal(t, 30*time.Second, c.Timeout)
}

func TestNewClientKeepsInjectedTransport(t *testing.T) {
	rt := headerTransport{}
	c := NewClient(rt)
	require.Equal(t, rt, c.Transport)
	require.Equal(t, 30*time.Second, c.Timeout)
}

func responseWith(encoding string, body []byte) *http.Response {
	h := http.Header{}
	if encoding != "" {
		h.Set("Content-Encoding", encoding)
	}
	return &http.Response{Header: h, Body: io.NopCloser(bytes.NewReader(body))}
}

func TestReadBodyPlain(t *testing.T) {
	got, err := ReadBody(responseWith("", []byte("hello")))
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), got)
}

func TestReadBodyGzip(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte("compressed content"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	got, err := ReadBody(responseWith("gzip", buf.Bytes()))
	require.NoError(t, err)
	require.Equal(t, []byte("compressed content"), got)
}

func TestReadBodyBrotli(t *testing.T) {
	var buf bytes.Buffer
	bw := brotli.NewWriter(&buf)
	_, err := bw.Write([]byte("brotli content"))
	require.NoError(t, err)
	require.NoError(t, bw.Close())

	got, err := ReadBody(responseWith("br", buf.Bytes()))
	require.NoError(t, err)
	require.Equal(t, []byte("brotli content"), got)
}

func TestReadBodyBadGzip(t *testing.T) {
	_, err := ReadBody(responseWith("gzip", []byte("not gzip")))
	require.Error(t, err)
}
