package providers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/BaSui01/streamrelay/types"
)

// MapHTTPError converts a non-2xx upstream response into a transient stream
// error. Upstream HTTP failures are always eligible for a retry; only local
// configuration problems are fatal.
func MapHTTPError(status int, msg string, provider string) *types.Error {
	var prefix string
	switch {
	case status == http.StatusUnauthorized:
		prefix = "unauthorized"
	case status == http.StatusForbidden:
		prefix = "forbidden"
	case status == http.StatusTooManyRequests:
		prefix = "rate limited"
	case status == 529:
		prefix = "model overloaded"
	case status >= 500:
		prefix = "upstream error"
	default:
		prefix = "request rejected"
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return types.NewTransientStreamError(provider, fmt.Sprintf("%s: %s", prefix, msg)).
		WithHTTPStatus(status)
}

// ReadErrorMessage extracts a readable message from an error body.
func ReadErrorMessage(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 64*1024))
	if err != nil {
		return "failed to read error response"
	}

	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Status  string `json:"status"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &errResp); err == nil && errResp.Error.Message != "" {
		kind := errResp.Error.Type
		if kind == "" {
			kind = errResp.Error.Status
		}
		if kind != "" {
			return fmt.Sprintf("%s (type: %s)", errResp.Error.Message, kind)
		}
		return errResp.Error.Message
	}
	return strings.TrimSpace(string(data))
}

// WrapTransportError converts a transport failure into a transient error.
func WrapTransportError(err error, provider string) *types.Error {
	if e, ok := types.AsError(err); ok {
		return e
	}
	return types.NewTransientStreamError(provider, err.Error()).WithCause(err)
}

// BearerTokenHeaders sets the JSON content type and bearer authorization.
func BearerTokenHeaders(r *http.Request, apiKey string) {
	r.Header.Set("Authorization", "Bearer "+apiKey)
	r.Header.Set("Content-Type", "application/json")
}

// ChooseModel returns the requested model or the configured default.
func ChooseModel(requested, defaultModel string) string {
	if requested != "" {
		return requested
	}
	return defaultModel
}

// SafeCloseBody closes body, ignoring errors.
func SafeCloseBody(body io.ReadCloser) {
	if body != nil {
		_ = body.Close()
	}
}

// ReadSSE parses a server-sent event stream and calls fn once per event.
// Multi-line data fields are joined with '\n'. Returning io.EOF from fn stops
// reading without error.
func ReadSSE(ctx context.Context, r io.Reader, fn func(event, data string) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var eventName string
	var dataBuf strings.Builder
	flush := func() error {
		if dataBuf.Len() == 0 {
			eventName = ""
			return nil
		}
		payload := dataBuf.String()
		dataBuf.Reset()
		name := eventName
		eventName = ""
		return fn(name, payload)
	}

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Text()
		switch {
		case line == "":
			if err := flush(); err != nil {
				return stopOnEOF(err)
			}
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event:"):
			eventName = strings.TrimSpace(line[6:])
		case strings.HasPrefix(line, "data:"):
			if dataBuf.Len() > 0 {
				dataBuf.WriteByte('\n')
			}
			dataBuf.WriteString(strings.TrimSpace(line[5:]))
		}
	}
	if err := scanner.Err(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return stopOnEOF(flush())
}

func stopOnEOF(err error) error {
	if err == io.EOF {
		return nil
	}
	return err
}
