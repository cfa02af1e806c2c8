package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/TimurManjosov/playmate/internal/catalog"
	"github.com/TimurManjosov/playmate/internal/playerdata"
)

// ErrConfirmationRequired is returned by Reset when the server wants an explicit confirmation.
var ErrConfirmationRequired = errors.New("confirmation required")

// APIError is a non-success response from the playmate API
type APIError struct {
	Status  int
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("API error (status %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("API error (status %d, %s): %s", e.Status, e.Code, e.Message)
}

// Client is an HTTP client for the playmate API
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new API client
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Game is a catalog entry with the player's state.
type Game struct {
	catalog.Game `yaml:",inline"`
	Unlocked     bool                `json:"unlocked" yaml:"unlocked"`
	Progress     playerdata.Progress `json:"progress" yaml:"progress"`
}

// SettingsUpdate is a partial settings change; nil fields are left alone.
type SettingsUpdate struct {
	SoundEnabled *bool   `json:"soundEnabled,omitempty"`
	Theme        *string `json:"theme,omitempty"`
	Difficulty   *string `json:"difficulty,omitempty"`
	AutoSave     *bool   `json:"autoSave,omitempty"`
}

// UnlockResult reports the outcome of an unlock.
type UnlockResult struct {
	GameID   string  `json:"gameId"`
	Price    float64 `json:"price"`
	Unlocked bool    `json:"unlocked"`
}

// Purchases is the purchase history with its total.
type Purchases struct {
	Purchases  []playerdata.Purchase `json:"purchases" yaml:"purchases"`
	TotalSpent float64               `json:"totalSpent" yaml:"totalSpent"`
}

// ImportResult is the server's report of an import or dry run.
type ImportResult struct {
	DryRun bool                    `json:"dryRun"`
	Result playerdata.ImportResult `json:"result"`
}

// Settings fetches the current settings
func (c *Client) Settings(ctx context.Context) (playerdata.Settings, error) {
	var s playerdata.Settings
	err := c.do(ctx, http.MethodGet, "/v1/settings", nil, &s)
	return s, err
}

// UpdateSettings applies a partial settings update and returns the result
func (c *Client) UpdateSettings(ctx context.Context, u SettingsUpdate) (playerdata.Settings, error) {
	var s playerdata.Settings
	err := c.do(ctx, http.MethodPut, "/v1/settings", u, &s)
	return s, err
}

// ListGames retrieves the catalog, optionally filtered by category
func (c *Client) ListGames(ctx context.Context, category string) ([]Game, error) {
	path := "/v1/games"
	if category != "" {
		path += "?" + url.Values{"category": {category}}.Encode()
	}
	var result struct {
		Games []Game `json:"games"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return result.Games, nil
}

// Progress retrieves the saved progress of a game
func (c *Client) Progress(ctx context.Context, gameID string) (playerdata.Progress, error) {
	var p playerdata.Progress
	err := c.do(ctx, http.MethodGet, gamePath(gameID, "progress"), nil, &p)
	return p, err
}

// SetProgress overwrites the saved progress of a game
func (c *Client) SetProgress(ctx context.Context, gameID string, p playerdata.Progress) error {
	return c.do(ctx, http.MethodPut, gamePath(gameID, "progress"), p, nil)
}

// ResetProgress removes the saved progress of a game
func (c *Client) ResetProgress(ctx context.Context, gameID string) error {
	return c.do(ctx, http.MethodDelete, gamePath(gameID, "progress"), nil, nil)
}

// Unlock buys a paid game
func (c *Client) Unlock(ctx context.Context, gameID string) (UnlockResult, error) {
	var res UnlockResult
	err := c.do(ctx, http.MethodPost, gamePath(gameID, "unlock"), nil, &res)
	return res, err
}

// Purchases retrieves the purchase history
func (c *Client) Purchases(ctx context.Context) (Purchases, error) {
	var p Purchases
	err := c.do(ctx, http.MethodGet, "/v1/purchases", nil, &p)
	return p, err
}

// Stats retrieves the statistics panel
func (c *Client) Stats(ctx context.Context) (playerdata.Stats, error) {
	var s playerdata.Stats
	err := c.do(ctx, http.MethodGet, "/v1/stats", nil, &s)
	return s, err
}

// Export downloads the backup bundle; format is "json" or "yaml".
func (c *Client) Export(ctx context.Context, format string) ([]byte, error) {
	path := "/v1/export"
	if format == "yaml" {
		path += "?format=yaml"
	}
	resp, err := c.send(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}
	return io.ReadAll(resp.Body)
}

// Import restores a backup bundle. With dryRun the server only validates it.
func (c *Client) Import(ctx context.Context, bundle []byte, dryRun bool) (ImportResult, error) {
	path := "/v1/import"
	if dryRun {
		path += "?dry_run=true"
	}
	resp, err := c.send(ctx, http.MethodPost, path, bytes.NewReader(bundle), "application/json")
	if err != nil {
		return ImportResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ImportResult{}, decodeError(resp)
	}
	var res ImportResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return ImportResult{}, fmt.Errorf("failed to decode response: %w", err)
	}
	return res, nil
}

// Reset clears progress, purchases or all data. The call is sent with confirm=true only when
// confirmed is set; otherwise the server answers with ErrConfirmationRequired.
func (c *Client) Reset(ctx context.Context, scope string, confirmed bool) error {
	path := "/v1/reset/" + url.PathEscape(scope)
	if confirmed {
		path += "?confirm=true"
	}
	err := c.do(ctx, http.MethodPost, path, nil, nil)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusPreconditionRequired {
		return fmt.Errorf("%w: %s", ErrConfirmationRequired, apiErr.Message)
	}
	return err
}

func gamePath(gameID, action string) string {
	return "/v1/games/" + url.PathEscape(gameID) + "/" + action
}

// do sends in as JSON (when non-nil) and decodes a 2xx response into out (when non-nil).
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var (
		body        io.Reader
		contentType string
	)
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(b)
		contentType = "application/json"
	}

	resp, err := c.send(ctx, method, path, body, contentType)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

func decodeError(resp *http.Response) error {
	bodyBytes, _ := io.ReadAll(resp.Body)
	apiErr := &APIError{Status: resp.StatusCode}
	if err := json.Unmarshal(bodyBytes, apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = string(bytes.TrimSpace(bodyBytes))
	}
	return apiErr
}
