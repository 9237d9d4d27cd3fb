// Package upstream forwards on-demand queries to the external stats
// source and normalizes every failure mode into a structured error.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/Yemba/vistatv-live-dashboard/internal/errors"
	"github.com/Yemba/vistatv-live-dashboard/internal/metrics"
)

// maxResponseBytes caps relayed bodies; the discovery listing and a
// per-channel history series are both well under this.
const maxResponseBytes = 8 << 20

// Result is a successful upstream response, relayed verbatim.
type Result struct {
	Status      int
	ContentType string
	Body        []byte
}

// Gateway issues requests against the stats source's base address with a
// bounded timeout. A Forward call only suspends its own caller; nothing
// else in the process waits on it.
type Gateway struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
}

func New(baseURL string, timeout time.Duration) *Gateway {
	return &Gateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
	}
}

// Forward sends method+path upstream unchanged and relays the response
// body and content type on success. Transport errors, timeouts, and
// upstream error statuses all come back as a structured external error;
// raw transport failures never reach the caller.
func (g *Gateway) Forward(ctx context.Context, method, path string) (*Result, error) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, nil)
	if err != nil {
		return nil, apperrors.ExternalError("invalid upstream request", err).WithContext("path", path)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := g.client.Do(req)
	metrics.UpstreamRequestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues("transport_error").Inc()
		return nil, apperrors.ExternalError("stats source unreachable", err).WithContext("path", path)
	}
	defer func() { _ = resp.Body.Close() }()

	metrics.UpstreamRequestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, apperrors.ExternalError("failed to read upstream response", err).WithContext("path", path)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		err := fmt.Errorf("upstream returned status %d", resp.StatusCode)
		return nil, apperrors.ExternalError("stats source error", err).WithContext("path", path)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/json"
	}
	return &Result{Status: resp.StatusCode, ContentType: contentType, Body: body}, nil
}

// Channels fetches the discovery listing and decodes the channel ids.
// Upstream serves either a plain id array or a list of {"id": ...}
// objects; both are accepted.
func (g *Gateway) Channels(ctx context.Context) ([]string, error) {
	result, err := g.Forward(ctx, http.MethodGet, "/channels")
	if err != nil {
		return nil, err
	}

	var ids []string
	if err := json.Unmarshal(result.Body, &ids); err == nil {
		return ids, nil
	}

	var objects []struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(result.Body, &objects); err != nil {
		return nil, apperrors.ExternalError("undecodable channel listing", err)
	}
	ids = make([]string, 0, len(objects))
	for _, obj := range objects {
		if obj.ID != "" {
			ids = append(ids, obj.ID)
		}
	}
	return ids, nil
}

// Latest fetches the most recent raw observation for one channel.
func (g *Gateway) Latest(ctx context.Context, channelID string) ([]byte, error) {
	result, err := g.Forward(ctx, http.MethodGet, "/channels/"+channelID+"/latest")
	if err != nil {
		return nil, err
	}
	return result.Body, nil
}
