package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

// pollOptions drives one long-poll session.
type pollOptions struct {
	Endpoint string
	QueueID  string
	TTW      int
	Filter   string
	// Limit stops after that many deliveries; 0 polls until cancelled.
	Limit int
	// MaxEmpty stops after that many consecutive empty polls; 0 never stops.
	MaxEmpty int
	// Backoff is the pause after a 429 or transport error.
	Backoff time.Duration
}

func (o pollOptions) url(base string) (string, error) {
	if o.QueueID == "" {
		return "", errors.New("--queue is required")
	}
	if o.Filter != "" && o.Endpoint != "stream" {
		return "", errors.New("--filter is only supported with --endpoint stream")
	}
	q := url.Values{}
	q.Set("queueID", o.QueueID)
	if o.TTW > 0 {
		q.Set("ttw", strconv.Itoa(o.TTW))
	}
	if o.Filter != "" {
		q.Set("filter", o.Filter)
	}
	return base + "/" + o.Endpoint + "?" + q.Encode(), nil
}

// runPoll long-polls the endpoint and writes one JSON line per delivery to
// out. It returns the number of deliveries.
func runPoll(ctx context.Context, hc *http.Client, base string, o pollOptions, out io.Writer) (int, error) {
	key, err := envelopeKey(o.Endpoint)
	if err != nil {
		return 0, err
	}
	u, err := o.url(base)
	if err != nil {
		return 0, err
	}
	if o.Backoff <= 0 {
		o.Backoff = time.Second
	}

	count, empty := 0, 0
	for ctx.Err() == nil {
		body, status, err := fetch(ctx, hc, u)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return count, nil
			}
			if !sleep(ctx, o.Backoff) {
				return count, nil
			}
			continue
		case status == http.StatusTooManyRequests:
			if !sleep(ctx, o.Backoff) {
				return count, nil
			}
			continue
		case status != http.StatusOK:
			return count, fmt.Errorf("http error: %d %s", status, http.StatusText(status))
		}

		ok, line, err := delivered(body, key)
		if err != nil {
			return count, err
		}
		if !ok {
			empty++
			if o.MaxEmpty > 0 && empty >= o.MaxEmpty {
				return count, nil
			}
			continue
		}
		empty = 0
		if _, err := fmt.Fprintf(out, "%s\n", line); err != nil {
			return count, err
		}
		count++
		if o.Limit > 0 && count >= o.Limit {
			return count, nil
		}
	}
	return count, nil
}

func fetch(ctx context.Context, hc *http.Client, u string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, 0, err
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	return body, resp.StatusCode, nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// NewPollCommand returns `poll`, a long-poll consumer for /redisq or /stream.
func NewPollCommand(baseURL BaseURLFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "poll",
		Short: "Long-poll the feed and print one JSON document per delivery",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var o pollOptions
			o.Endpoint, _ = cmd.Flags().GetString("endpoint")
			o.QueueID, _ = cmd.Flags().GetString("queue")
			o.TTW, _ = cmd.Flags().GetInt("ttw")
			o.Filter, _ = cmd.Flags().GetString("filter")
			o.Limit, _ = cmd.Flags().GetInt("limit")
			o.MaxEmpty, _ = cmd.Flags().GetInt("max-empty")
			base, _ := cmd.Flags().GetString("url")
			if base == "" {
				base = baseURL()
			}

			// The server holds a poll for at most 10s.
			hc := &http.Client{Timeout: 30 * time.Second}
			_, err := runPoll(cmd.Context(), hc, base, o, cmd.OutOrStdout())
			return err
		},
	}
	cmd.Flags().String("endpoint", "redisq", "Feed endpoint: redisq|stream")
	cmd.Flags().String("queue", "", "Queue id identifying this consumer (required)")
	cmd.Flags().Int("ttw", 0, "Seconds the server may hold each poll, 1..10 (server default when 0)")
	cmd.Flags().Int("limit", 0, "Stop after N deliveries (0 = until interrupted)")
	cmd.Flags().Int("max-empty", 0, "Stop after N consecutive empty polls (0 = never)")
	cmd.Flags().String("filter", "", "CEL filter expression (stream endpoint only)")
	cmd.Flags().String("url", "", "Server base URL (default $KILLFEED_URL or http://127.0.0.1:8080)")
	return cmd
}
