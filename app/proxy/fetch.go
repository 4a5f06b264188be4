// Package proxy serves stored files without revealing where they are stored
package proxy

import (
	"bitwise74/course-archive/internal"
	"bitwise74/course-archive/internal/storage"
	"bitwise74/course-archive/pkg/metrics"
	"bitwise74/course-archive/pkg/middleware"
	"bitwise74/course-archive/pkg/validators"
	"errors"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"unicode"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Response headers never passed on to the caller. The first group identifies
// the storage provider, the rest are hop-by-hop.
var hiddenHeaders = map[string]struct{}{
	"X-Linked-Etag":       {},
	"X-Linked-Size":       {},
	"X-Amz-Storage-Class": {},
	"X-Repo-Commit":       {},
	"X-Amz-Request-Id":    {},
	"X-Amz-Id-2":          {},
	"Set-Cookie":          {},
	"Content-Disposition": {},
	"Server":              {},

	"Connection":          {},
	"Keep-Alive":          {},
	"Proxy-Authenticate":  {},
	"Proxy-Authorization": {},
	"Te":                  {},
	"Trailer":             {},
	"Transfer-Encoding":   {},
	"Upgrade":             {},
}

// hiddenHeader also drops every provider specific header of S3 and MinIO
func hiddenHeader(k string) bool {
	k = http.CanonicalHeaderKey(k)
	if _, ok := hiddenHeaders[k]; ok {
		return true
	}

	return strings.HasPrefix(k, "X-Amz-") || strings.HasPrefix(k, "X-Minio-")
}

// ProxyFetch streams the object at ?path= from the upstream store. It makes a
// single attempt; any upstream failure status becomes a generic 404.
func ProxyFetch(c *gin.Context, d *internal.Deps) {
	requestID := middleware.RequestID(c)

	raw := c.Query("path")
	if raw == "" {
		metrics.ProxyRequests.WithLabelValues("bad_request").Inc()
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Missing path",
			"requestID": requestID,
		})
		return
	}

	key, err := validators.ObjectKey(raw)
	if err != nil {
		metrics.ProxyRequests.WithLabelValues("bad_request").Inc()
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid path",
			"requestID": requestID,
		})
		return
	}

	req, err := upstreamRequest(c, d, key)
	if err != nil {
		metrics.ProxyRequests.WithLabelValues("upstream_error").Inc()
		c.JSON(http.StatusBadGateway, gin.H{
			"error":     "Upstream unavailable",
			"requestID": requestID,
		})

		zap.L().Error("Failed to build upstream request", zap.String("requestID", requestID), zap.Error(err))
		return
	}

	// Lets browsers resume large downloads
	if r := c.GetHeader("Range"); r != "" {
		req.Header.Set("Range", r)
	}

	resp, err := d.Upstream.Do(req)
	if err != nil {
		metrics.ProxyRequests.WithLabelValues("upstream_error").Inc()
		c.JSON(http.StatusBadGateway, gin.H{
			"error":     "Upstream unavailable",
			"requestID": requestID,
		})

		zap.L().Error("Failed to reach upstream store", zap.String("requestID", requestID), zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.ProxyRequests.WithLabelValues("not_found").Inc()
		c.JSON(http.StatusNotFound, gin.H{
			"error":     "File not found in Archive",
			"requestID": requestID,
		})

		zap.L().Debug("Upstream refused object",
			zap.String("requestID", requestID),
			zap.String("path", key),
			zap.Int("status", resp.StatusCode),
		)
		return
	}

	h := c.Writer.Header()
	for k, vv := range resp.Header {
		if hiddenHeader(k) {
			continue
		}

		for _, v := range vv {
			h.Add(k, v)
		}
	}
	h.Set("Content-Disposition", attachment(path.Base(key)))

	c.Status(resp.StatusCode)
	metrics.ProxyRequests.WithLabelValues("ok").Inc()

	if c.Request.Method == http.MethodHead {
		return
	}

	if _, err := io.Copy(c.Writer, resp.Body); err != nil && !errors.Is(err, c.Request.Context().Err()) {
		zap.L().Warn("Download stream interrupted", zap.String("requestID", requestID), zap.Error(err))
	}
}

// upstreamRequest points at upstream.base_url with the bearer token when one
// is configured, otherwise at a presigned url of the storage backend. The
// token never goes to a presigned url.
func upstreamRequest(c *gin.Context, d *internal.Deps, key string) (*http.Request, error) {
	ctx := c.Request.Context()
	method := c.Request.Method
	cfg := d.Config.Upstream

	if cfg.BaseURL != "" {
		req, err := http.NewRequestWithContext(ctx, method, upstreamURL(cfg.BaseURL, key), nil)
		if err != nil {
			return nil, err
		}

		if cfg.Token != "" {
			req.Header.Set("Authorization", "Bearer "+cfg.Token)
		}
		req.Header.Set("User-Agent", cfg.UserAgent)

		return req, nil
	}

	p, ok := d.Store.(storage.Presigner)
	if !ok {
		return nil, errors.New("storage backend can't presign and no upstream base url is set")
	}

	signed, err := p.PresignRead(ctx, method, key, cfg.PresignTTL)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, signed, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", cfg.UserAgent)

	return req, nil
}

// upstreamURL appends key to base, escaping every segment on its own
func upstreamURL(base, key string) string {
	segs := strings.Split(key, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}

	return strings.TrimRight(base, "/") + "/" + strings.Join(segs, "/")
}

// attachment builds a Content-Disposition header. Names with characters
// outside printable ASCII also get an RFC 5987 filename* parameter.
func attachment(name string) string {
	ascii := true
	for _, r := range name {
		if r > unicode.MaxASCII || !unicode.IsPrint(r) {
			ascii = false
			break
		}
	}

	quoted := strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(name)
	if ascii {
		return `attachment; filename="` + quoted + `"`
	}

	fallback := strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII || !unicode.IsPrint(r) {
			return '_'
		}
		return r
	}, quoted)

	return `attachment; filename="` + fallback + `"; filename*=UTF-8''` + url.PathEscape(name)
}
