// Package backend talks to the agent and projection service.
package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"mapping-viewer/internal/common/config"
	apphttp "mapping-viewer/internal/common/http"
	"mapping-viewer/internal/common/logger"
	"mapping-viewer/internal/models"
)

type Client struct {
	baseURL    string
	http       *apphttp.Client
	maxRetries int
	logger     logger.Logger
}

// Status is the reply of the service root.
type Status struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

type askRequest struct {
	Question string `json:"question"`
}

type projectResponse struct {
	Hotspots []models.Hotspot `json:"hotspots"`
}

type nearbyResponse struct {
	NearbyImages []models.NearbyEdge `json:"nearby_images"`
}

func NewClient(cfg config.BackendConfig, log logger.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		http:       apphttp.NewClient(time.Duration(cfg.Timeout) * time.Millisecond),
		maxRetries: cfg.MaxRetries,
		logger:     logger.ForComponent(log, "backend"),
	}
}

// WithBackoff sets the first retry delay.
func (c *Client) WithBackoff(d time.Duration) *Client {
	c.http.WithBackoff(d)
	return c
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// Health checks the service root.
func (c *Client) Health(ctx context.Context) (Status, error) {
	var st Status
	err := c.http.DoJSON(ctx, http.MethodGet, c.baseURL+"/", nil, &st, 0)
	return st, err
}

// Campaign fetches the survey dataset.
func (c *Client) Campaign(ctx context.Context) (*models.Campaign, error) {
	var campaign models.Campaign
	if err := c.http.DoJSON(ctx, http.MethodGet, c.baseURL+"/campaign", nil, &campaign, c.maxRetries); err != nil {
		return nil, err
	}
	c.logger.Info("campaign fetched", map[string]interface{}{
		"features": len(campaign.Features),
		"images":   len(campaign.Images),
	})
	return &campaign, nil
}

// Ask sends a question to the agent. The agent appends every question to its
// memory, so a failed ask is never resent.
func (c *Client) Ask(ctx context.Context, question string) (*models.AskResponse, error) {
	var resp models.AskResponse
	if err := c.http.DoJSON(ctx, http.MethodPost, c.baseURL+"/ask", askRequest{Question: question}, &resp, 0); err != nil {
		return nil, err
	}
	c.logger.Debug("answer received", map[string]interface{}{
		"commands": len(resp.MapCommands),
		"toolUses": len(resp.ToolUses),
		"tokens":   resp.Tokens,
	})
	return &resp, nil
}

// Clear drops the agent's conversation memory.
func (c *Client) Clear(ctx context.Context) error {
	return c.http.DoJSON(ctx, http.MethodPost, c.baseURL+"/clear", nil, nil, c.maxRetries)
}

// ProjectFeatures places features inside a panorama. It never retries.
func (c *Client) ProjectFeatures(ctx context.Context, imageID int, featureIDs []int) ([]models.Hotspot, error) {
	ids := make([]string, len(featureIDs))
	for i, id := range featureIDs {
		ids[i] = strconv.Itoa(id)
	}
	q := url.Values{}
	q.Set("image_id", strconv.Itoa(imageID))
	q.Set("feature_ids", strings.Join(ids, ","))

	var resp projectResponse
	if err := c.http.DoJSON(ctx, http.MethodGet, c.baseURL+"/project/features?"+q.Encode(), nil, &resp, 0); err != nil {
		return nil, err
	}
	return resp.Hotspots, nil
}

// NearbyImages lists panoramas within maxDistance meters. It never retries.
func (c *Client) NearbyImages(ctx context.Context, imageID int, maxDistance float64) ([]models.NearbyEdge, error) {
	q := url.Values{}
	q.Set("image_id", strconv.Itoa(imageID))
	q.Set("max_distance", strconv.FormatFloat(maxDistance, 'f', -1, 64))

	var resp nearbyResponse
	if err := c.http.DoJSON(ctx, http.MethodGet, c.baseURL+"/nearby/images?"+q.Encode(), nil, &resp, 0); err != nil {
		return nil, err
	}
	return resp.NearbyImages, nil
}

// PanoramaURL is the panorama definition the panorama engine loads.
func (c *Client) PanoramaURL(imagePath string) string {
	segments := strings.Split(strings.Trim(imagePath, "/"), "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return fmt.Sprintf("%s/panorama/%s", c.baseURL, strings.Join(segments, "/"))
}
