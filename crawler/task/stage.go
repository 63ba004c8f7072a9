package task

import (
	"github.com/NHYCRaymond/go-anime-crawler/errors"
)

// Stage is one phase of the crawl pipeline. Its name doubles as the
// routing key on the crawler exchange.
type Stage string

const (
	StageIndex   Stage = "index"
	StageDetail  Stage = "detail"
	StageEpisode Stage = "episode"
	StageLink    Stage = "link"
)

// RouteError is the dead-letter routing key
const RouteError = "error"

// QueuePrefix prefixes every stage queue name
const QueuePrefix = "anime_"

// Status is the result code of a stage run
type Status int

const (
	// StatusProcessed means the stage did its work
	StatusProcessed Status = 0
	// StatusSkipped means an expected absence of data ended the stage early
	StatusSkipped Status = 1
)

func (s Status) String() string {
	switch s {
	case StatusProcessed:
		return "processed"
	case StatusSkipped:
		return "skipped"
	}
	return "unknown"
}

// Stages lists the pipeline stages in flow order
func Stages() []Stage {
	return []Stage{StageIndex, StageDetail, StageEpisode, StageLink}
}

// RoutingKey returns the topic routing key of the stage
func (s Stage) RoutingKey() string {
	return string(s)
}

// Queue returns the durable queue consumed by the stage
func (s Stage) Queue() string {
	return QueuePrefix + string(s)
}

// ErrorQueue is the queue bound to the dead-letter routing key
func ErrorQueue() string {
	return QueuePrefix + RouteError
}

// ParseStage resolves a routing key to a stage
func ParseStage(key string) (Stage, error) {
	for _, s := range Stages() {
		if string(s) == key {
			return s, nil
		}
	}
	return "", errors.ErrUnknownStage.WithMessage("unknown stage %q", key)
}
