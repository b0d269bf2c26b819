package core

import (
	"agentorange/agentorange/sources/psql/models"
	"agentorange/agentorange/utils/logging"
	"agentorange/agentorange/utils/metrics"
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// MessageSaver persists a chat message by id.
type MessageSaver interface {
	AddMessage(ctx context.Context, msg *models.ChatMessage) error
}

// Publisher fans message updates out to subscribers of the message's group.
type Publisher interface {
	Publish(ctx context.Context, msg models.ChatMessage)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, models.ChatMessage) {}

type DrainResult struct {
	Text      string
	Cancelled bool
}

// StreamCoordinator turns a delta stream into in-place updates of a placeholder
// message.
type StreamCoordinator struct {
	store     MessageSaver
	lanes     *Lanes
	publisher Publisher
	metrics   *metrics.Metrics
}

func NewStreamCoordinator(store MessageSaver, lanes *Lanes, publisher Publisher, m *metrics.Metrics) *StreamCoordinator {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	return &StreamCoordinator{store: store, lanes: lanes, publisher: publisher, metrics: m}
}

// Drain consumes deltas until the stream closes, the lane stops generating or
// ctx is done. Each delta rewrites placeholder.Content with the running total,
// which is then persisted and published. The lane is cleared on return.
// Cancellation is not an error; a stream error is logged and returned as is.
func (c *StreamCoordinator) Drain(ctx context.Context, laneID string, placeholder *models.ChatMessage, deltas <-chan string, errs <-chan error) (DrainResult, error) {
	defer c.lanes.Stop(laneID)

	host := ""
	if placeholder.Host != nil {
		host = *placeholder.Host
	}

	var b strings.Builder
	for {
		select {
		case delta, ok := <-deltas:
			if !ok {
				if err := <-errs; err != nil {
					logging.ErrorLogger.Error("stream failed",
						zap.String("lane_id", laneID),
						zap.String("message_id", placeholder.ID),
						zap.Error(err))
					return DrainResult{Text: b.String()}, err
				}
				// a cancelled adapter ends its stream without error
				cancelled := !c.lanes.IsGenerating(laneID) || ctx.Err() != nil
				return DrainResult{Text: b.String(), Cancelled: cancelled}, nil
			}
			if !c.lanes.IsGenerating(laneID) {
				return DrainResult{Text: b.String(), Cancelled: true}, nil
			}
			c.metrics.RecordDelta(host)
			b.WriteString(delta)
			placeholder.Content = b.String()
			if err := c.store.AddMessage(ctx, placeholder); err != nil {
				logging.ErrorLogger.Error("persisting streamed message failed",
					zap.String("lane_id", laneID),
					zap.String("message_id", placeholder.ID),
					zap.Error(err))
				return DrainResult{Text: b.String()}, fmt.Errorf("persist message %s: %w", placeholder.ID, err)
			}
			c.publisher.Publish(ctx, *placeholder)
		case <-ctx.Done():
			return DrainResult{Text: b.String(), Cancelled: true}, nil
		}
	}
}
