// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/pdiddy/evidence-engine/internal/failure"
	"github.com/pdiddy/evidence-engine/internal/httputil"
)

// daemon calls a local Ollama-compatible inference server.
type daemon struct {
	baseURL    string
	credential string
	client     *http.Client
	logger     *zap.Logger
}

type daemonMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type daemonRequest struct {
	Model    string          `json:"model"`
	Messages []daemonMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  daemonOptions   `json:"options"`
}

type daemonOptions struct {
	NumPredict int `json:"num_predict"`
}

func (d *daemon) complete(ctx context.Context, req Request) (Reply, error) {
	body := daemonRequest{Model: req.Model, Options: daemonOptions{NumPredict: req.MaxTokens}}
	if req.System != "" {
		body.Messages = append(body.Messages, daemonMessage{Role: "system", Content: req.System})
	}
	for _, t := range req.Messages {
		body.Messages = append(body.Messages, daemonMessage{Role: string(t.Role), Content: t.Content})
	}

	data, err := json.Marshal(body)
	if err != nil {
		return Reply{}, fmt.Errorf("marshaling request: %w", err)
	}

	url := strings.TrimRight(d.baseURL, "/") + "/api/chat"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return Reply{}, failure.Configf("daemon url %q: %v", d.baseURL, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if d.credential != "" {
		httpReq.Header.Set("Authorization", "Bearer "+d.credential)
	}

	resp, err := d.client.Do(httpReq)
	if err != nil {
		if httputil.IsConnRefused(err) {
			return d.fallback(req, err), nil
		}
		return Reply{}, httputil.Classify(string(ModeLocalDaemon), 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Reply{}, httputil.Classify(string(ModeLocalDaemon), resp.StatusCode,
			fmt.Errorf("daemon returned %d: %s", resp.StatusCode, httputil.ErrorBody(resp)))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Reply{}, httputil.Classify(string(ModeLocalDaemon), 0, fmt.Errorf("reading response: %w", err))
	}
	if !gjson.ValidBytes(raw) {
		return Reply{}, failure.Fatal(string(ModeLocalDaemon), resp.StatusCode, fmt.Errorf("response is not JSON"))
	}
	content := gjson.GetBytes(raw, "message.content")
	if !content.Exists() {
		return Reply{}, failure.Fatal(string(ModeLocalDaemon), resp.StatusCode, fmt.Errorf("response has no message content"))
	}

	used := gjson.GetBytes(raw, "model").String()
	if used == "" {
		used = req.Model
	}
	return Reply{
		Text:      content.String(),
		ModelUsed: used,
		Variant:   ModeLocalDaemon,
	}, nil
}

// fallback answers with the offline stub when the daemon is not listening.
func (d *daemon) fallback(req Request, cause error) Reply {
	d.logger.Warn("local daemon unreachable, answering with offline stub",
		zap.String("daemon_url", d.baseURL),
		zap.String("requested_model", req.Model),
		zap.Error(cause))
	reply, _ := stub{}.complete(context.Background(), req)
	reply.Fallback = true
	reply.FallbackCause = cause.Error()
	return reply
}
