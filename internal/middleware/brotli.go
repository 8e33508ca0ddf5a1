package middleware

import (
	"net/http"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
)

// minCompressLength is the smallest body worth compressing. Attempt view
// payloads sit well above this; tiny acknowledgement responses pass
// through uncompressed.
const minCompressLength = 1024

type brotliWriter struct {
	gin.ResponseWriter
	writer     *brotli.Writer
	buf        []byte
	once       sync.Once
	compressed bool
}

func (bw *brotliWriter) Write(data []byte) (int, error) {
	bw.buf = append(bw.buf, data...)
	if len(bw.buf) < minCompressLength {
		return len(data), nil
	}

	bw.once.Do(func() {
		bw.compressed = true
		bw.ResponseWriter.Header().Set("Content-Encoding", "br")
		bw.ResponseWriter.Header().Del("Content-Length")
	})
	n, err := bw.writer.Write(bw.buf)
	bw.buf = bw.buf[:0]
	return n, err
}

func (bw *brotliWriter) WriteString(s string) (int, error) {
	return bw.Write([]byte(s))
}

// Flush satisfies http.Flusher for streaming responses: the buffer is
// drained uncompressed because a partial brotli stream cannot be decoded.
func (bw *brotliWriter) Flush() {
	bw.drain()
	bw.ResponseWriter.Flush()
}

func (bw *brotliWriter) drain() {
	if len(bw.buf) == 0 {
		return
	}
	if bw.compressed {
		// Already mid-stream; the remainder must go through the encoder.
		_, _ = bw.writer.Write(bw.buf)
	} else {
		_, _ = bw.ResponseWriter.Write(bw.buf)
	}
	bw.buf = bw.buf[:0]
}

// Brotli compresses response bodies for clients that advertise br
// support. Bodies below minCompressLength are sent as-is.
func Brotli() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !acceptsBrotli(c.Request) {
			c.Next()
			return
		}

		c.Header("Vary", "Accept-Encoding")

		bw := &brotliWriter{
			ResponseWriter: c.Writer,
			writer:         brotli.NewWriterLevel(c.Writer, brotli.DefaultCompression),
		}
		defer func() {
			bw.drain()
			if bw.compressed {
				bw.writer.Close()
			}
		}()

		c.Writer = bw
		c.Next()
	}
}

func acceptsBrotli(r *http.Request) bool {
	for _, enc := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		if strings.TrimSpace(strings.ToLower(enc)) == "br" {
			return true
		}
	}
	return false
}
