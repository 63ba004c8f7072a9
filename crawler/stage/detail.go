package stage

import (
	"context"
	"strings"

	"github.com/NHYCRaymond/go-anime-crawler/crawler/extractor"
	"github.com/NHYCRaymond/go-anime-crawler/crawler/storage"
	"github.com/NHYCRaymond/go-anime-crawler/crawler/task"
)

// Result keys with routing meaning on a detail page
const (
	KeyEpisodeURL = "episode_url"
	KeyBatchURL   = "batch_url"
	KeyEpisodes   = "episodes"
)

// Detail extracts an anime record, persists it and fans out to the
// Episode and Link stages. The record id is derived from the page URL, so
// it is known before the write is applied.
func (p *Processor) Detail(ctx context.Context, payload *task.CrawlPayload) (Outcome, error) {
	logger := p.logger(ctx, payload)

	if len(payload.PatternDetail) == 0 {
		logger.Info("No detail patterns configured, skipping")
		return Skipped(), nil
	}

	doc, err := p.load(ctx, payload)
	if err != nil || doc == nil {
		return Skipped(), err
	}

	result := p.deps.Evaluator.Evaluate(ctx, doc, payload.PatternDetail)
	rec := projectAnime(result, payload)
	for _, spec := range payload.PatternDetail {
		if !result.Has(spec.Key) {
			logger.Debug("Detail field empty", "key", spec.Key)
		}
	}

	out := Outcome{
		Status: task.StatusProcessed,
		Writes: []storage.Write{storage.AnimeUpsert(payload.MediaID, rec)},
	}

	episodes := resolveAll(payload.PageURL, append([]string{rec.EpisodeURL}, result.Strings(KeyEpisodes)...))
	for _, u := range episodes {
		out.Next = append(out.Next, Message{Stage: task.StageEpisode, Payload: payload.ForEpisode(u, rec.UUID)})
	}

	switch {
	case rec.BatchURL != "":
		out.Next = append(out.Next, Message{Stage: task.StageLink, Payload: payload.ForLink(rec.BatchURL, rec.UUID)})
	case extractor.HasBatchInDetail(payload.PatternLink):
		out.Next = append(out.Next, Message{Stage: task.StageLink, Payload: payload.ForLink(payload.PageURL, rec.UUID)})
	}

	logger.Info("Detail page processed",
		"data_id", rec.UUID,
		"title", rec.Title,
		"episodes", len(episodes),
		"next", len(out.Next))
	return out, nil
}

// projectAnime maps an extraction result onto an AnimeRecord. Columns left
// empty by their own pattern fall back to a same-named key_value label.
func projectAnime(result extractor.Result, payload *task.CrawlPayload) storage.AnimeRecord {
	info := pairsOf(result)

	field := func(key string) string {
		if v := result.String(key); v != "" {
			if _, isPairs := result[key].(extractor.Pairs); !isPairs {
				return v
			}
		}
		return lookupLabel(info, key)
	}

	rec := storage.AnimeRecord{
		URL:          storage.NormalizeURL(payload.PageURL),
		UUID:         storage.RecordID(payload.PageURL),
		SourceID:     payload.SourceID,
		Title:        field("title"),
		AltTitle:     field("alt_title"),
		Poster:       resolve(payload.PageURL, field("poster")),
		Synopsis:     strings.Join(result.Strings("synopsis"), "\n"),
		Score:        field("score"),
		Status:       field("status"),
		Type:         field("type"),
		Studio:       field("studio"),
		TotalEpisode: field("total_episode"),
		ReleaseDate:  field("release_date"),
		Genres:       genres(result, info),
		EpisodeURL:   resolve(payload.PageURL, result.String(KeyEpisodeURL)),
		BatchURL:     resolve(payload.PageURL, result.String(KeyBatchURL)),
	}
	if len(info) > 0 {
		rec.Info = info
	}
	return rec
}

// lookupLabel finds a key_value label matching a column name, ignoring
// case and treating underscores as spaces
func lookupLabel(info map[string]string, column string) string {
	want := strings.ReplaceAll(column, "_", " ")
	for label, value := range info {
		if strings.EqualFold(strings.TrimSpace(label), want) {
			return value
		}
	}
	return ""
}

func genres(result extractor.Result, info map[string]string) []string {
	values := result.Strings("genres")
	if len(values) == 0 {
		if v := lookupLabel(info, "genre"); v != "" {
			values = []string{v}
		}
	}
	if len(values) == 1 && strings.Contains(values[0], ",") {
		values = strings.Split(values[0], ",")
	}

	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// pairsOf collects every key_value pair of the result into one map
func pairsOf(result extractor.Result) map[string]string {
	info := make(map[string]string)
	for _, field := range result {
		if pairs, ok := field.(extractor.Pairs); ok {
			for _, pair := range pairs {
				info[pair.Key] = pair.Value
			}
		}
	}
	return info
}
