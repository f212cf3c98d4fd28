package oachat

import (
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"slices"

	"github.com/casualjim/oachat/pkg/jsonx"
	"github.com/casualjim/oachat/pkg/slogx"
	"github.com/tidwall/gjson"
)

// maxErrorBody caps how much of an error stream is drained.
const maxErrorBody = 1 << 20

func success(status int) bool {
	return status >= 200 && status < 300
}

// statusError builds the error for a non-success status, preferring the
// structured service error when the body carries one.
func statusError(status int, body []byte) error {
	if serr := decodeServiceError(status, body); serr != nil {
		return serr
	}
	return newHTTPError(status, body)
}

// validateResponse is the check every buffered response passes before its
// payload is used.
func (c *Client) validateResponse(resp *http.Response, body []byte) error {
	if !success(resp.StatusCode) {
		return statusError(resp.StatusCode, body)
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		mediaType, _, err := mime.ParseMediaType(ct)
		if err != nil || !slices.Contains(c.cfg.AcceptedContentTypes, mediaType) {
			return &UnexpectedContentTypeError{ContentType: ct}
		}
	}

	if len(body) == 0 {
		return &EmptyResponseError{StatusCode: resp.StatusCode}
	}

	if !gjson.ValidBytes(body) {
		return fmt.Errorf("invalid JSON response: %w", jsonx.ErrInvalidJSON)
	}
	return nil
}

// validateStream checks a streamed response before any line is consumed.
// On failure the error body lives inside the stream, so it is drained first.
func (c *Client) validateStream(resp *http.Response) error {
	if success(resp.StatusCode) {
		return nil
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return fmt.Errorf("HTTP %d: failed to read error body: %w", resp.StatusCode, err)
	}
	c.log.Debug("stream rejected", slog.Int("status", resp.StatusCode), slogx.ByteString("body", body))
	return statusError(resp.StatusCode, body)
}
