package api

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

type contentEncoding int

const (
	encodingIdentity contentEncoding = iota
	encodingGzip
	encodingUnsupported
)

// GzipRequestMiddleware lets clients send command batches gzip compressed.
// Identity bodies pass through untouched, any other encoding is rejected
// with 415 and a corrupt gzip header with 400.
func GzipRequestMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			switch requestEncoding(req.Header.Get(echo.HeaderContentEncoding)) {
			case encodingIdentity:
				return next(c)
			case encodingUnsupported:
				return echo.NewHTTPError(http.StatusUnsupportedMediaType, "unsupported content encoding")
			}

			raw := req.Body
			gr, err := gzip.NewReader(raw)
			if err != nil {
				_ = raw.Close()
				return echo.NewHTTPError(http.StatusBadRequest, "invalid gzip body")
			}

			req.Body = &gzipBody{Reader: gr, raw: raw}
			req.ContentLength = -1
			req.Header.Del(echo.HeaderContentEncoding)
			req.Header.Del(echo.HeaderContentLength)
			return next(c)
		}
	}
}

func requestEncoding(header string) contentEncoding {
	enc := encodingIdentity
	for _, token := range strings.Split(header, ",") {
		switch strings.ToLower(strings.TrimSpace(token)) {
		case "", "identity":
		case "gzip", "x-gzip":
			enc = encodingGzip
		default:
			return encodingUnsupported
		}
	}
	return enc
}

// gzipBody closes the decompressor and the underlying request body.
type gzipBody struct {
	*gzip.Reader
	raw io.Closer
}

func (g *gzipBody) Close() error {
	err := g.Reader.Close()
	if cerr := g.raw.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
