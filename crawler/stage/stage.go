// Package stage implements the four crawl stages. A stage is a plain
// function from a payload to an Outcome; it never writes or publishes
// itself; the executor applies the outcome.
package stage

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/NHYCRaymond/go-anime-crawler/crawler/extractor"
	"github.com/NHYCRaymond/go-anime-crawler/crawler/fetcher"
	"github.com/NHYCRaymond/go-anime-crawler/crawler/sanitizer"
	"github.com/NHYCRaymond/go-anime-crawler/crawler/storage"
	"github.com/NHYCRaymond/go-anime-crawler/crawler/task"
	"github.com/NHYCRaymond/go-anime-crawler/logging"
)

// Message is a follow-on message to publish under Stage's routing key
type Message struct {
	Stage   task.Stage
	Payload task.CrawlPayload
}

// Outcome is what a stage run asks the executor to do
type Outcome struct {
	Status task.Status
	Writes []storage.Write
	Next   []Message
}

// Skipped is the outcome of a run ended by an expected absence of data
func Skipped() Outcome {
	return Outcome{Status: task.StatusSkipped}
}

// Func processes one payload
type Func func(ctx context.Context, payload *task.CrawlPayload) (Outcome, error)

// AnimeFinder looks up persisted anime records
type AnimeFinder interface {
	FindAnime(ctx context.Context, mediaID, uuid string) (*storage.AnimeRecord, error)
}

// Deps are the collaborators shared by all stages
type Deps struct {
	Fetcher         fetcher.Fetcher
	Limiter         fetcher.RateLimiter
	Sanitizer       *sanitizer.Sanitizer
	Evaluator       *extractor.Evaluator
	Records         AnimeFinder
	PersistEpisodes bool
	Logger          *slog.Logger
}

// Processor runs stages against its dependencies
type Processor struct {
	deps Deps
}

// New creates a Processor. Missing optional collaborators get defaults.
func New(deps Deps) *Processor {
	if deps.Limiter == nil {
		deps.Limiter = fetcher.NopLimiter{}
	}
	if deps.Sanitizer == nil {
		deps.Sanitizer = sanitizer.New()
	}
	if deps.Evaluator == nil {
		deps.Evaluator = extractor.NewEvaluator(nil)
	}
	if deps.Logger == nil {
		deps.Logger = logging.GetLogger()
	}
	return &Processor{deps: deps}
}

// Handlers returns the stage table keyed by routing key
func (p *Processor) Handlers() map[task.Stage]Func {
	return map[task.Stage]Func{
		task.StageIndex:   p.Index,
		task.StageDetail:  p.Detail,
		task.StageEpisode: p.Episode,
		task.StageLink:    p.Link,
	}
}

func (p *Processor) logger(ctx context.Context, payload *task.CrawlPayload) *slog.Logger {
	return logging.EnrichLogger(ctx, p.deps.Logger).With(
		"source_id", payload.SourceID,
		"media_id", payload.MediaID,
		"page_url", payload.PageURL)
}

// load fetches, sanitizes and parses the payload page. A nil document
// means there is nothing to extract.
func (p *Processor) load(ctx context.Context, payload *task.CrawlPayload) (*extractor.Document, error) {
	logger := p.logger(ctx, payload)

	if err := p.deps.Limiter.Wait(ctx, payload.SourceID); err != nil {
		return nil, err
	}

	body, err := p.deps.Fetcher.Fetch(ctx, payload.PageURL)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(body) == "" {
		logger.Info("Fetched page is empty, stopping")
		return nil, nil
	}

	doc, err := extractor.Load(p.deps.Sanitizer.Sanitize(body), extractor.WithDocumentLogger(logger))
	if err != nil {
		logger.Warn("Page could not be parsed, stopping", "error", err)
		return nil, nil
	}
	return doc, nil
}

// resolve makes ref absolute against base. Unparsable references are
// returned as-is.
func resolve(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	b, err := url.Parse(base)
	if err != nil || r.IsAbs() {
		return r.String()
	}
	return b.ResolveReference(r).String()
}

// resolveAll resolves refs against base, dropping blanks and duplicates
func resolveAll(base string, refs []string) []string {
	seen := make(map[string]struct{}, len(refs))
	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		u := resolve(base, ref)
		if u == "" {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
