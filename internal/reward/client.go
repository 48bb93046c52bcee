package reward

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"quizroom-service/internal/domain"
)

// Client posts the final leaderboard to the external reward service.
// Best-effort: the caller reports failures but never blocks game
// completion on the outcome.
type Client struct {
	endpoint string
	client   *http.Client
}

func NewClient(endpoint string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

type distributeRequest struct {
	RoomID           string                    `json:"roomId"`
	SessionNumber    int64                     `json:"sessionNumber"`
	FinalLeaderboard []domain.LeaderboardEntry `json:"finalLeaderboard"`
}

type distributeResponse struct {
	Success bool            `json:"success"`
	Results json.RawMessage `json:"results,omitempty"`
	Error   string          `json:"error,omitempty"`
}

func (c *Client) DistributeRewards(ctx context.Context, roomID string, sessionNumber int64, leaderboard domain.Leaderboard) (string, error) {
	body, err := json.Marshal(distributeRequest{
		RoomID:           roomID,
		SessionNumber:    sessionNumber,
		FinalLeaderboard: leaderboard.Entries,
	})
	if err != nil {
		return "", fmt.Errorf("marshal reward request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build reward request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("reward request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("reward service returned status %d: %s", resp.StatusCode, errBody)
	}

	var payload distributeResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode reward response: %w", err)
	}
	if !payload.Success {
		return "", fmt.Errorf("reward service reported failure: %s", payload.Error)
	}
	return string(payload.Results), nil
}
