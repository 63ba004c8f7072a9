package messagequeue

import (
	"github.com/NHYCRaymond/go-anime-crawler/crawler/task"
	"github.com/rabbitmq/amqp091-go"
)

// Channel classes
const (
	ChannelNormal = "normal"
	ChannelFast   = "fast"
)

// QueueBinding is a durable queue bound to the exchange under one routing key
type QueueBinding struct {
	Queue      string
	RoutingKey string
	Arguments  amqp091.Table
}

// Topology is the exchange and the queues bound to it
type Topology struct {
	Exchange string
	Bindings []QueueBinding
}

// CrawlTopology returns one queue per stage, each dead-lettering to the
// error routing key of the same exchange, plus the error queue itself.
func CrawlTopology(exchange string) Topology {
	t := Topology{Exchange: exchange}
	for _, s := range task.Stages() {
		t.Bindings = append(t.Bindings, QueueBinding{
			Queue:      s.Queue(),
			RoutingKey: s.RoutingKey(),
			Arguments:  deadLetterArgs(exchange),
		})
	}
	t.Bindings = append(t.Bindings, QueueBinding{
		Queue:      task.ErrorQueue(),
		RoutingKey: task.RouteError,
	})
	return t
}

func deadLetterArgs(exchange string) amqp091.Table {
	return amqp091.Table{
		"x-dead-letter-exchange":    exchange,
		"x-dead-letter-routing-key": task.RouteError,
	}
}

// Binding returns the binding for queue
func (t Topology) Binding(queue string) (QueueBinding, bool) {
	for _, b := range t.Bindings {
		if b.Queue == queue {
			return b, true
		}
	}
	return QueueBinding{}, false
}
