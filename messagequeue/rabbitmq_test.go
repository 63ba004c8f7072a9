package messagequeue

import (
	"testing"

	"github.com/NHYCRaymond/go-anime-crawler/config"
	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCrawlTopology(t *testing.T) {
	topo := CrawlTopology("crawler")
	assert.Equal(t, "crawler", topo.Exchange)
	require.Len(t, topo.Bindings, 5)

	tests := []struct {
		queue      string
		routingKey string
	}{
		{"anime_index", "index"},
		{"anime_detail", "detail"},
		{"anime_episode", "episode"},
		{"anime_link", "link"},
	}
	for _, tt := range tests {
		t.Run(tt.queue, func(t *testing.T) {
			b, ok := topo.Binding(tt.queue)
			require.True(t, ok)
			assert.Equal(t, tt.routingKey, b.RoutingKey)
			assert.Equal(t, amqp091.Table{
				"x-dead-letter-exchange":    "crawler",
				"x-dead-letter-routing-key": "error",
			}, b.Arguments)
		})
	}

	errQueue, ok := topo.Binding("anime_error")
	require.True(t, ok)
	assert.Equal(t, "error", errQueue.RoutingKey)
	assert.Nil(t, errQueue.Arguments, "the error queue does not dead-letter again")

	_, ok = topo.Binding("anime_unknown")
	assert.False(t, ok)
}

func TestNewPublishing(t *testing.T) {
	a := NewPublishing([]byte(`{"page_url":"x"}`))
	b := NewPublishing([]byte(`{}`))

	assert.Equal(t, "application/json", a.ContentType)
	assert.Equal(t, amqp091.Persistent, a.DeliveryMode)
	assert.NotEmpty(t, a.MessageId)
	assert.NotEqual(t, a.MessageId, b.MessageId)
	assert.False(t, a.Timestamp.IsZero())
}

func TestChannelPrefetch(t *testing.T) {
	rq := &RabbitMQ{config: config.RabbitMQConfig{
		Channels: map[string]config.ChannelClass{"fast": {Prefetch: 50}},
	}}

	assert.Equal(t, 50, rq.ChannelPrefetch(ChannelFast))
	assert.Equal(t, 10, rq.ChannelPrefetch(ChannelNormal))
	assert.Equal(t, 10, rq.ChannelPrefetch("bulk"))

	rq.config.Channels = nil
	assert.Equal(t, 30, rq.ChannelPrefetch(ChannelFast))
}

func TestDSN(t *testing.T) {
	dsn := DSN(config.RabbitMQConfig{Host: "mq", Port: 5672, Username: "u", Password: "p"})
	assert.Equal(t, "amqp://u:p@mq:5672/", dsn)
}

func TestHealthCheckDisconnected(t *testing.T) {
	rq := &RabbitMQ{}
	assert.Error(t, rq.HealthCheck())
	assert.False(t, rq.IsConnected())
}
