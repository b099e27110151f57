package middleware

import (
	"compress/gzip"
	"net/http"
	"strings"
	"sync"
)

// DefaultCompressMinSize keeps health checks and error bodies uncompressed while
// snapshot and fitness payloads are gzipped.
const DefaultCompressMinSize = 512

var gzipPool = sync.Pool{
	New: func() interface{} {
		w, _ := gzip.NewWriterLevel(nil, gzip.BestSpeed)
		return w
	},
}

// Compression gzips responses of at least minSize bytes for clients that accept
// gzip. Smaller bodies, bodiless statuses, already encoded responses, WebSocket
// upgrades and the metrics endpoint are written as is.
func Compression(minSize int) func(http.Handler) http.Handler {
	if minSize <= 0 {
		minSize = DefaultCompressMinSize
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !acceptsGzip(r) ||
				strings.EqualFold(r.Header.Get("Upgrade"), "websocket") ||
				r.URL.Path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Add("Vary", "Accept-Encoding")
			cw := &compressWriter{ResponseWriter: w, minSize: minSize, status: http.StatusOK}
			defer cw.finish()
			next.ServeHTTP(cw, r)
		})
	}
}

func acceptsGzip(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		coding, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		if strings.EqualFold(strings.TrimSpace(coding), "gzip") {
			return strings.ReplaceAll(params, " ", "") != "q=0"
		}
	}
	return false
}

// compressWriter holds the body back until it reaches minSize, then commits to
// gzip. Bodies that end below minSize are sent plain from finish.
type compressWriter struct {
	http.ResponseWriter
	minSize int
	status  int
	buf     []byte
	gz      *gzip.Writer
	// committed means headers were sent; gz is set when the body is compressed.
	committed bool
	headerSet bool
}

func (w *compressWriter) WriteHeader(status int) {
	if w.headerSet || w.committed {
		return
	}
	w.status = status
	w.headerSet = true
	if !bodyAllowed(status) || w.Header().Get("Content-Encoding") != "" {
		w.commitPlain()
	}
}

func (w *compressWriter) Write(b []byte) (int, error) {
	if w.committed {
		if w.gz != nil {
			return w.gz.Write(b)
		}
		return w.ResponseWriter.Write(b)
	}
	if w.Header().Get("Content-Encoding") != "" {
		w.commitPlain()
		return w.ResponseWriter.Write(b)
	}

	w.buf = append(w.buf, b...)
	if len(w.buf) < w.minSize {
		return len(b), nil
	}
	if err := w.commitGzip(); err != nil {
		return 0, err
	}
	return len(b), nil
}

func (w *compressWriter) commitPlain() {
	w.committed = true
	w.ResponseWriter.WriteHeader(w.status)
}

func (w *compressWriter) commitGzip() error {
	h := w.Header()
	h.Set("Content-Encoding", "gzip")
	h.Del("Content-Length")
	w.committed = true
	w.ResponseWriter.WriteHeader(w.status)

	w.gz = gzipPool.Get().(*gzip.Writer)
	w.gz.Reset(w.ResponseWriter)
	_, err := w.gz.Write(w.buf)
	w.buf = nil
	return err
}

func (w *compressWriter) finish() {
	if w.gz != nil {
		_ = w.gz.Close()
		w.gz.Reset(nil)
		gzipPool.Put(w.gz)
		w.gz = nil
		return
	}
	if !w.committed {
		w.commitPlain()
		if len(w.buf) > 0 {
			_, _ = w.ResponseWriter.Write(w.buf)
		}
	}
}

func bodyAllowed(status int) bool {
	return status >= http.StatusOK && status != http.StatusNoContent && status != http.StatusNotModified
}
