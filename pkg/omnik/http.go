package omnik

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

const (
	acceptHeader = "text/html,application/xhtml+xml,application/xml"
	maxBodySize  = 1 << 20
)

var acceptedContentTypes = []string{"application/json", "application/x-javascript", "text/html"}

func (c *Client) request(ctx context.Context, uri string, params url.Values) (string, error) {
	defer RecordTimer("HTTPRequest", c.instrument)()

	u := url.URL{
		Scheme: c.cfg.Scheme,
		Host:   c.httpHost(),
		Path:   "/" + uri,
	}
	if params != nil {
		u.RawQuery = params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	req.Header.Set("Accept", acceptHeader)
	if c.cfg.Username != "" && c.cfg.Password != "" {
		req.SetBasicAuth(c.cfg.Username, c.cfg.Password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", connectionErr(err)
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		return "", &ProtocolError{StatusCode: resp.StatusCode, ContentType: contentType}
	}
	if !acceptedContentType(contentType) {
		c.logger.Debug("unexpected content type", zap.String("uri", uri), zap.String("content_type", contentType))
		return "", &ProtocolError{StatusCode: resp.StatusCode, ContentType: contentType}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return "", connectionErr(err)
	}
	return asciiOnly(raw), nil
}

func acceptedContentType(contentType string) bool {
	for _, t := range acceptedContentTypes {
		if strings.Contains(contentType, t) {
			return true
		}
	}
	return false
}

// asciiOnly drops every non-ASCII byte.
func asciiOnly(raw []byte) string {
	var sb strings.Builder
	sb.Grow(len(raw))
	for _, b := range raw {
		if b < 0x80 {
			sb.WriteByte(b)
		}
	}
	return sb.String()
}
