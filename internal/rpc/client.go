// Package rpc calls whitelisted procedures on the temporal server.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Header names sent with every call.
const (
	HeaderRequestID = "X-Request-ID"
	HeaderUser      = "X-Temporal-User"
)

// ErrMalformedResponse is returned when a response body cannot be decoded.
var ErrMalformedResponse = errors.New("malformed procedure response")

// Response is the success envelope of a procedure call.
type Response struct {
	Message json.RawMessage `json:"message"`
}

// ErrorBody is the failure envelope of a procedure call.
type ErrorBody struct {
	ExcType   string `json:"exc_type"`
	Exception string `json:"exception"`
}

// RemoteError reports a non-2xx procedure response.
type RemoteError struct {
	Status  int
	Type    string
	Message string
}

func (e *RemoteError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("remote call failed with status %d", e.Status)
	}
	return fmt.Sprintf("remote call failed with status %d: %s: %s", e.Status, e.Type, e.Message)
}

// Client holds the base URL and HTTP client configuration.
type Client struct {
	BaseURL    string
	User       string
	HTTPClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a Client with default settings.
func NewClient(baseURL, user string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		User:    user,
		// Calls are bounded by the caller's context only.
		HTTPClient: &http.Client{},
		logger:     logger,
	}
}

// Call posts args as JSON to the named procedure and returns the message member.
func (c *Client) Call(ctx context.Context, method string, args map[string]any) (json.RawMessage, error) {
	body, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("failed to encode arguments: %w", err)
	}

	url := c.BaseURL + "/api/method/" + method
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(HeaderRequestID, requestID)
	if c.User != "" {
		req.Header.Set(HeaderUser, c.User)
	}

	start := time.Now()
	res, err := c.HTTPClient.Do(req)
	if err != nil {
		c.logger.Warn("procedure call failed",
			zap.String("method", method),
			zap.String("request_id", requestID),
			zap.Error(err))
		return nil, err
	}
	defer func() {
		if cerr := res.Body.Close(); cerr != nil {
			// Best-effort body close.
			_ = cerr
		}
	}()

	resBody, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	c.logger.Debug("procedure call finished",
		zap.String("method", method),
		zap.String("request_id", requestID),
		zap.Int("status", res.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		remote := &RemoteError{Status: res.StatusCode}
		var eb ErrorBody
		if json.Unmarshal(resBody, &eb) == nil {
			remote.Type = eb.ExcType
			remote.Message = eb.Exception
		}
		return nil, remote
	}

	var out Response
	if err := json.Unmarshal(resBody, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return out.Message, nil
}
