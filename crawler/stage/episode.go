package stage

import (
	"context"

	"github.com/NHYCRaymond/go-anime-crawler/crawler/extractor"
	"github.com/NHYCRaymond/go-anime-crawler/crawler/storage"
	"github.com/NHYCRaymond/go-anime-crawler/crawler/task"
)

// Result keys read by the Episode and Link stages
const (
	KeyTitle    = "title"
	KeyMirrors  = "mirrors"
	KeyDownload = "download"
)

// Episode extracts the mirrors and download list of an episode page. It
// emits nothing; the record is written only when episode persistence is on.
func (p *Processor) Episode(ctx context.Context, payload *task.CrawlPayload) (Outcome, error) {
	logger := p.logger(ctx, payload)

	if len(payload.PatternWatch) == 0 {
		logger.Info("No watch patterns configured, skipping")
		return Skipped(), nil
	}

	doc, err := p.load(ctx, payload)
	if err != nil || doc == nil {
		return Skipped(), err
	}

	result := p.deps.Evaluator.Evaluate(ctx, doc, payload.PatternWatch)
	rec := storage.EpisodeRecord{
		URL:          storage.NormalizeURL(payload.PageURL),
		UUID:         storage.RecordID(payload.PageURL),
		AnimeUUID:    payload.DataID,
		Title:        result.String(KeyTitle),
		Mirrors:      resolveAll(payload.PageURL, result.Strings(KeyMirrors)),
		DownloadList: projectDownloads(result, payload.PageURL),
	}

	logger.Info("Episode page processed",
		"data_id", payload.DataID,
		"title", rec.Title,
		"mirrors", len(rec.Mirrors),
		"download_groups", len(rec.DownloadList))

	out := Outcome{Status: task.StatusProcessed}
	if p.deps.PersistEpisodes {
		out.Writes = append(out.Writes, storage.EpisodeUpsert(payload.MediaID, rec))
	}
	return out, nil
}

// projectDownloads turns the download container into download groups.
// Each record of the container is one resolution holding a nested "list"
// container of {title, url} links; all of them form one group titled by
// the page title. Records that carry their own "title" and nested "data"
// are taken as whole groups instead.
func projectDownloads(result extractor.Result, base string) []storage.DownloadGroup {
	records := result.Records(KeyDownload)
	if len(records) == 0 {
		return nil
	}

	var groups []storage.DownloadGroup
	page := storage.DownloadGroup{Title: result.String(KeyTitle)}
	for _, rec := range records {
		if data := rec.Records("data"); len(data) > 0 {
			groups = append(groups, storage.DownloadGroup{
				Title: rec.String(KeyTitle),
				Data:  projectResolutions(data, base),
			})
			continue
		}
		page.Data = append(page.Data, projectResolutions(extractor.Records{rec}, base)...)
	}
	if len(page.Data) > 0 {
		groups = append([]storage.DownloadGroup{page}, groups...)
	}
	return groups
}

func projectResolutions(records extractor.Records, base string) []storage.DownloadResolution {
	out := make([]storage.DownloadResolution, 0, len(records))
	for _, rec := range records {
		res := storage.DownloadResolution{Resolution: rec.String("resolution")}
		for _, link := range rec.Records("list") {
			u := resolve(base, link.String("url"))
			if u == "" {
				continue
			}
			res.List = append(res.List, storage.DownloadLink{Title: link.String(KeyTitle), URL: u})
		}
		if len(res.List) > 0 {
			out = append(out, res)
		}
	}
	return out
}
