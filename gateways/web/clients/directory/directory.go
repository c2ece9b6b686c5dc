package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	config "github.com/rishabh280305/SehatMitra-sub000/config/calls"
	"github.com/rishabh280305/SehatMitra-sub000/services/calls/entity"
)

// Client resolves user ids against the platform user service. Call
// orchestration never stores accounts; it only snapshots what the directory
// returns at call-creation time.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *slog.Logger
}

type userResponse struct {
	UserID      string `json:"user_id"`
	UserType    string `json:"user_type"`
	DisplayName string `json:"display_name"`
}

func New(cfg *config.ServiceConfig, log *slog.Logger) *Client {
	baseURL := fmt.Sprintf("http://%s:%d", cfg.Url, cfg.Port)
	log.Debug("creating directory client", slog.String("base_url", baseURL))
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{},
		log:        log,
	}
}

func (c *Client) Resolve(ctx context.Context, userID string) (*entity.Participant, error) {
	url := fmt.Sprintf("%s/api/v1/users/%s", c.baseURL, userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Error("directory request failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to reach user service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("user %s not found", userID)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("user service returned status %d", resp.StatusCode)
	}

	var user userResponse
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("failed to decode user response: %w", err)
	}

	return &entity.Participant{
		UserID:      user.UserID,
		UserType:    entity.UserType(user.UserType),
		DisplayName: user.DisplayName,
	}, nil
}
