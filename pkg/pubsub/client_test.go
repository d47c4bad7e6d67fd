package pubsub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/angelmondragon/zipshift-backend/pkg/config"
)

func TestTopicPath(t *testing.T) {
	cases := map[string]struct {
		project, topic, want string
	}{
		"bare id":       {"zipshift-dev", "notifications", "projects/zipshift-dev/topics/notifications"},
		"resource name": {"zipshift-dev", "projects/other/topics/x", "projects/other/topics/x"},
		"blank topic":   {"zipshift-dev", "  ", ""},
		"no project":    {"", "notifications", ""},
	}
	for name, tc := range cases {
		assert.Equal(t, tc.want, topicPath(tc.project, tc.topic), name)
	}
}

func TestNewClientRequiresConfiguration(t *testing.T) {
	ctx := context.Background()
	_, err := NewClient(ctx, config.GCPConfig{}, config.PubSubConfig{NotificationTopic: "n"}, nil)
	assert.ErrorIs(t, err, errProjectIDRequired)

	_, err = NewClient(ctx, config.GCPConfig{ProjectID: "p"}, config.PubSubConfig{}, nil)
	assert.ErrorIs(t, err, errNoTopic)
}

func TestNilClient(t *testing.T) {
	var c *Client
	assert.ErrorIs(t, c.PublishNotification(context.Background(), []byte("{}"), nil), errClosed)
	assert.ErrorIs(t, c.Ping(context.Background()), errClosed)
	assert.NoError(t, c.Close())
}
