// Package pubsub publishes notification events to a Google Cloud Pub/Sub topic
// for consumers outside this service.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/zipshift-backend/pkg/config"
	"github.com/angelmondragon/zipshift-backend/pkg/logger"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNoTopic           = errors.New("pubsub notification topic is required")
	errClosed            = errors.New("pubsub client not initialized")
)

// Client owns one publisher bound to the notification topic.
type Client struct {
	client    *pubsub.Client
	topic     string
	publisher *pubsub.Publisher
}

// topicPath expands a bare topic id into its resource name. Full resource
// names pass through unchanged.
func topicPath(projectID, topic string) string {
	topic = strings.TrimSpace(topic)
	switch {
	case topic == "":
		return ""
	case strings.HasPrefix(topic, "projects/") && strings.Contains(topic, "/topics/"):
		return topic
	case strings.TrimSpace(projectID) == "":
		return ""
	}
	return "projects/" + strings.TrimSpace(projectID) + "/topics/" + topic
}

// NewClient connects and fails fast when the topic is missing; topics are
// provisioned outside the service.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	if strings.TrimSpace(gcp.ProjectID) == "" {
		return nil, errProjectIDRequired
	}
	if !cfg.Enabled() {
		return nil, errNoTopic
	}

	conn, err := pubsub.NewClient(ctx, gcp.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	c := &Client{client: conn, topic: topicPath(gcp.ProjectID, cfg.NotificationTopic)}
	if err := c.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	c.publisher = conn.Publisher(c.topic)

	if logg != nil {
		logg.Info(logg.WithField(ctx, "topic", c.topic), "pubsub.ready")
	}
	return c, nil
}

// PublishNotification sends one encoded notification and blocks until the
// server acknowledges it or ctx ends.
func (c *Client) PublishNotification(ctx context.Context, data []byte, attrs map[string]string) error {
	if c == nil || c.publisher == nil {
		return errClosed
	}
	_, err := c.publisher.Publish(ctx, &pubsub.Message{Data: data, Attributes: attrs}).Get(ctx)
	if err != nil {
		return fmt.Errorf("publishing to %s: %w", c.topic, err)
	}
	return nil
}

// Ping checks that the notification topic exists.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errClosed
	}
	_, err := c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: c.topic})
	switch {
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("topic %s does not exist", c.topic)
	case err != nil:
		return fmt.Errorf("checking topic %s: %w", c.topic, err)
	}
	return nil
}

// Close flushes pending messages before releasing the connection.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	if c.publisher != nil {
		c.publisher.Stop()
	}
	return c.client.Close()
}
