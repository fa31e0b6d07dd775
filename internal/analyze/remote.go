package analyze

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/ppiankov/geotag/internal/model"
	"github.com/ppiankov/geotag/internal/util"
)

const maxResponseBytes = 32 << 20

// RemoteAnalyzer delegates analysis to an NLP service speaking JSON over HTTP
type RemoteAnalyzer struct {
	url    string
	client *retryablehttp.Client
}

type analyzeRequest struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

type analyzeResponse struct {
	Tokens    []model.Token      `json:"tokens"`
	Sentences []model.Sentence   `json:"sentences"`
	Entities  []model.EntitySpan `json:"entities"`
}

// NewRemoteAnalyzer creates an analyzer posting to {remote_url}/analyze
func NewRemoteAnalyzer(cfg model.AnalyzerConfig) *RemoteAnalyzer {
	return &RemoteAnalyzer{
		url: strings.TrimRight(cfg.RemoteURL, "/") + "/analyze",
		client: util.NewRetryableClient(util.ClientOptions{
			Timeout:  cfg.Timeout,
			RetryMax: cfg.Retries,
		}),
	}
}

// Analyze implements Analyzer
func (a *RemoteAnalyzer) Analyze(ctx context.Context, text string) (*Doc, error) {
	body, err := json.Marshal(analyzeRequest{Text: text, Language: "en"})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("analyze request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("analyzer returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var decoded analyzeResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if err := validateOffsets(text, decoded); err != nil {
		return nil, err
	}

	for i := range decoded.Entities {
		decoded.Entities[i].Text = text[decoded.Entities[i].Start:decoded.Entities[i].End]
	}

	if len(decoded.Sentences) == 0 && text != "" {
		decoded.Sentences = []model.Sentence{{Start: 0, End: len(text)}}
	}

	return &Doc{
		Tokens:    decoded.Tokens,
		Sentences: decoded.Sentences,
		Entities:  decoded.Entities,
	}, nil
}

func validateOffsets(text string, r analyzeResponse) error {
	for i, t := range r.Tokens {
		if t.Start < 0 || t.End() > len(text) || text[t.Start:t.End()] != t.Text {
			return fmt.Errorf("token %d %q does not match text at offset %d", i, t.Text, t.Start)
		}
	}
	for i, e := range r.Entities {
		if e.Start < 0 || e.End > len(text) || e.Start >= e.End {
			return fmt.Errorf("entity %d has invalid range [%d,%d)", i, e.Start, e.End)
		}
	}
	return nil
}
