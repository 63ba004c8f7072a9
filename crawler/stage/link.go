package stage

import (
	"context"

	"github.com/NHYCRaymond/go-anime-crawler/crawler/storage"
	"github.com/NHYCRaymond/go-anime-crawler/crawler/task"
	"github.com/NHYCRaymond/go-anime-crawler/errors"
)

// Link parses batch download links and merges them into the anime record
// named by the payload's data id. A record that is not persisted yet ends
// the run with a skip; the message is not retried.
func (p *Processor) Link(ctx context.Context, payload *task.CrawlPayload) (Outcome, error) {
	logger := p.logger(ctx, payload).With("data_id", payload.DataID)

	if len(payload.PatternLink) == 0 {
		logger.Info("No link patterns configured, skipping")
		return Skipped(), nil
	}
	if payload.DataID == "" {
		logger.Warn("Link message carries no data id, skipping")
		return Skipped(), nil
	}

	if _, err := p.deps.Records.FindAnime(ctx, payload.MediaID, payload.DataID); err != nil {
		if errors.Is(err, errors.ErrRecordNotFound) {
			logger.Warn("Anime record not found, dropping batch links")
			return Skipped(), nil
		}
		return Skipped(), err
	}

	doc, err := p.load(ctx, payload)
	if err != nil || doc == nil {
		return Skipped(), err
	}

	result := p.deps.Evaluator.Evaluate(ctx, doc, payload.PatternLink)
	groups := projectDownloads(result, payload.PageURL)
	if len(groups) == 0 {
		logger.Info("No batch links found")
		return Skipped(), nil
	}

	logger.Info("Batch links extracted", "download_groups", len(groups))
	return Outcome{
		Status: task.StatusProcessed,
		Writes: []storage.Write{storage.DownloadListMerge(payload.MediaID, payload.DataID, groups)},
	}, nil
}
