package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/maltedev/olx-scraper/internal/models"
)

type EventType string

const (
	EventTypeRunCompleted EventType = "OLX_SEARCH_COMPLETED"
)

// StreamClient is the subset of the redis client the publisher needs.
type StreamClient interface {
	XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd
}

type RunCompletedPayload struct {
	EventID   string           `json:"event_id"`
	EventType string           `json:"event_type"`
	Timestamp time.Time        `json:"timestamp"`
	RunID     string           `json:"run_id"`
	Query     string           `json:"query"`
	Strategy  string           `json:"strategy"`
	Attempted []string         `json:"attempted"`
	Count     int              `json:"count"`
	Listings  []models.Listing `json:"listings"`
	Files     []string         `json:"files,omitempty"`
	Source    string           `json:"source"`
}

type Publisher struct {
	client StreamClient
	stream string
	logger *slog.Logger
}

func NewPublisher(client StreamClient, stream string, logger *slog.Logger) *Publisher {
	return &Publisher{
		client: client,
		stream: stream,
		logger: logger.With("component", "event_publisher"),
	}
}

// PublishRunCompleted appends the run summary to the stream and returns the
// stream entry ID.
func (p *Publisher) PublishRunCompleted(ctx context.Context, payload *RunCompletedPayload) (string, error) {
	if payload.EventID == "" {
		payload.EventID = uuid.New().String()
	}
	if payload.EventType == "" {
		payload.EventType = string(EventTypeRunCompleted)
	}
	if payload.Timestamp.IsZero() {
		payload.Timestamp = time.Now()
	}
	if payload.Source == "" {
		payload.Source = "olx-scraper"
	}
	if payload.Listings == nil {
		payload.Listings = []models.Listing{}
	}
	payload.Count = len(payload.Listings)

	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"data":       string(data),
			"type":       payload.EventType,
			"event_id":   payload.EventID,
			"run_id":     payload.RunID,
			"query":      payload.Query,
			"count":      payload.Count,
			"timestamp":  fmt.Sprintf("%d", payload.Timestamp.UnixNano()),
			"event_type": payload.EventType,
		},
	}

	id, err := p.client.XAdd(ctx, args).Result()
	if err != nil {
		return "", fmt.Errorf("failed to publish to redis: %w", err)
	}

	p.logger.Info("event published",
		"type", payload.EventType,
		"event_id", payload.EventID,
		"run_id", payload.RunID,
		"stream", p.stream,
		"entry_id", id,
	)

	return id, nil
}
