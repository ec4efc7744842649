package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"
	"sync"

	"go.uber.org/zap"
)

var gzipWriterPool = sync.Pool{
	New: func() interface{} {
		w, _ := gzip.NewWriterLevel(io.Discard, gzip.DefaultCompression)
		return w
	},
}

// compressibleTypes are content type prefixes worth compressing. XLSX
// worksheets are zip archives already and stay as they are.
var compressibleTypes = []string{
	"text/",
	"application/json",
	"application/problem+json",
}

// gzipResponseWriter decides on the first header write whether to compress,
// since the handler sets Content-Type only then
type gzipResponseWriter struct {
	http.ResponseWriter
	gz          *gzip.Writer
	decided     bool
	compressing bool
	statusCode  int
}

func (w *gzipResponseWriter) WriteHeader(statusCode int) {
	if w.decided {
		return
	}
	w.decided = true
	w.statusCode = statusCode

	h := w.Header()
	if h.Get("Content-Encoding") == "" && CompressibleContentType(h.Get("Content-Type")) &&
		statusCode != http.StatusNoContent && statusCode != http.StatusNotModified {
		w.compressing = true
		h.Set("Content-Encoding", "gzip")
		h.Add("Vary", "Accept-Encoding")
		h.Del("Content-Length")
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *gzipResponseWriter) Write(b []byte) (int, error) {
	if !w.decided {
		if w.Header().Get("Content-Type") == "" {
			w.Header().Set("Content-Type", http.DetectContentType(b))
		}
		w.WriteHeader(http.StatusOK)
	}
	if w.compressing {
		return w.gz.Write(b)
	}
	return w.ResponseWriter.Write(b)
}

// GzipHandler compresses responses for clients that accept gzip
func GzipHandler(level int, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") || r.Method == http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}

			gz := acquireGzip(level, w)
			gzw := &gzipResponseWriter{ResponseWriter: w, gz: gz}
			defer func() {
				if gzw.compressing {
					if err := gz.Close(); err != nil {
						logger.Debug("Failed to flush gzip response", zap.Error(err))
					}
				}
				releaseGzip(level, gz)
			}()

			next.ServeHTTP(gzw, r)

			if gzw.compressing {
				logger.Debug("Response compressed",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", gzw.statusCode),
				)
			}
		})
	}
}

func acquireGzip(level int, w io.Writer) *gzip.Writer {
	if level == gzip.DefaultCompression {
		gz := gzipWriterPool.Get().(*gzip.Writer)
		gz.Reset(w)
		return gz
	}
	gz, err := gzip.NewWriterLevel(w, level)
	if err != nil {
		gz = gzip.NewWriter(w)
	}
	return gz
}

func releaseGzip(level int, gz *gzip.Writer) {
	if level == gzip.DefaultCompression {
		gz.Reset(io.Discard)
		gzipWriterPool.Put(gz)
	}
}

// CompressibleContentType returns true if content type should be compressed
func CompressibleContentType(contentType string) bool {
	for _, prefix := range compressibleTypes {
		if strings.HasPrefix(contentType, prefix) {
			return true
		}
	}
	return false
}
