package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/amishk599/harvester/internal/model"
)

// Ensure SlackReporter implements Reporter.
var _ Reporter = (*SlackReporter)(nil)

// SlackReporter posts one run summary to a Slack channel via Incoming Webhooks.
type SlackReporter struct {
	webhookURL string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewSlackReporter returns a reporter that posts to webhookURL.
func NewSlackReporter(webhookURL string, httpClient *http.Client, logger *slog.Logger) *SlackReporter {
	return &SlackReporter{
		webhookURL: webhookURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Report sends the summary as a single Block Kit message. A 429 is retried
// once after Retry-After.
func (s *SlackReporter) Report(ctx context.Context, stats *model.RunStats) error {
	body, err := json.Marshal(buildPayload(stats))
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	status, retryAfter, err := s.post(ctx, body)
	if err != nil {
		return err
	}

	if status == http.StatusTooManyRequests {
		s.logger.Warn("slack rate limited, retrying", "retry_after_secs", int(retryAfter.Seconds()))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryAfter):
		}

		status, _, err = s.post(ctx, body)
		if err != nil {
			return fmt.Errorf("retry: %w", err)
		}
		if status != http.StatusOK {
			return fmt.Errorf("slack returned %d on retry", status)
		}
		s.logger.Info("slack report sent", "run_id", stats.RunID, "retried", true)
		return nil
	}

	if status != http.StatusOK {
		return fmt.Errorf("slack returned %d", status)
	}
	s.logger.Info("slack report sent", "run_id", stats.RunID)
	return nil
}

func (s *SlackReporter) post(ctx context.Context, body []byte) (int, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return 0, 0, fmt.Errorf("build slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, 0, fmt.Errorf("post to slack: %w", err)
	}
	defer resp.Body.Close()

	secs, _ := strconv.Atoi(resp.Header.Get("Retry-After"))
	if secs <= 0 {
		secs = 1
	}
	return resp.StatusCode, time.Duration(secs) * time.Second, nil
}

// Block Kit payload types.

type slackPayload struct {
	Blocks []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type     string      `json:"type"`
	Text     *slackText  `json:"text,omitempty"`
	Fields   []slackText `json:"fields,omitempty"`
	Elements []slackText `json:"elements,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func buildPayload(stats *model.RunStats) slackPayload {
	total := stats.Totals()

	headline := "✅ Ingestion run complete"
	if total.Failed > 0 || total.FailedPages > 0 {
		headline = "⚠️ Ingestion run finished with failures"
	}

	blocks := []slackBlock{
		{
			Type: "header",
			Text: &slackText{Type: "plain_text", Text: headline},
		},
		{
			Type: "section",
			Fields: []slackText{
				{Type: "mrkdwn", Text: fmt.Sprintf("*Found:*\n%d", total.Found)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Persisted:*\n%d", total.Persisted)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Rejected:*\n%d", total.Rejected)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Duplicates:*\n%d", total.Duplicates)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Failed:*\n%d", total.Failed)},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Failed pages:*\n%d", total.FailedPages)},
			},
		},
	}

	if snaps := stats.Snapshot(); len(snaps) > 0 {
		var b strings.Builder
		b.WriteString("```\n")
		fmt.Fprintf(&b, "%-12s %7s %9s %5s %6s\n", "source", "found", "persisted", "dups", "failed")
		for _, s := range snaps {
			fmt.Fprintf(&b, "%-12s %7d %9d %5d %6d\n", s.Source, s.Found, s.Persisted, s.Duplicates, s.Failed+s.SearchFailed)
		}
		b.WriteString("```")
		blocks = append(blocks, slackBlock{
			Type: "section",
			Text: &slackText{Type: "mrkdwn", Text: b.String()},
		})
	}

	blocks = append(blocks,
		slackBlock{
			Type: "context",
			Elements: []slackText{
				{Type: "mrkdwn", Text: fmt.Sprintf("run `%s` · %s", stats.RunID, stats.Duration().Round(time.Second))},
			},
		},
		slackBlock{Type: "divider"},
	)

	return slackPayload{Blocks: blocks}
}
