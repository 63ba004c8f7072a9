package storage

import (
	"context"
	"fmt"

	"github.com/NHYCRaymond/go-anime-crawler/errors"
	"github.com/NHYCRaymond/go-anime-crawler/logging"
)

// Write is one pending change produced by a stage and applied by Store.Apply
type Write interface {
	apply(ctx context.Context, s *Store) error
	String() string
}

type animeUpsert struct {
	mediaID string
	record  AnimeRecord
}

// AnimeUpsert returns a write that upserts rec into the anime table of mediaID
func AnimeUpsert(mediaID string, rec AnimeRecord) Write {
	return animeUpsert{mediaID: mediaID, record: rec}
}

func (w animeUpsert) apply(ctx context.Context, s *Store) error {
	rec := w.record
	return s.UpsertAnime(ctx, w.mediaID, &rec)
}

func (w animeUpsert) String() string {
	return fmt.Sprintf("upsert %s uuid=%s", TableName(KindAnime, w.mediaID), w.record.UUID)
}

type episodeUpsert struct {
	mediaID string
	record  EpisodeRecord
}

// EpisodeUpsert returns a write that upserts rec into the episode table of mediaID
func EpisodeUpsert(mediaID string, rec EpisodeRecord) Write {
	return episodeUpsert{mediaID: mediaID, record: rec}
}

func (w episodeUpsert) apply(ctx context.Context, s *Store) error {
	rec := w.record
	return s.UpsertEpisode(ctx, w.mediaID, &rec)
}

func (w episodeUpsert) String() string {
	return fmt.Sprintf("upsert %s uuid=%s", TableName(KindEpisode, w.mediaID), w.record.UUID)
}

type downloadMerge struct {
	mediaID string
	uuid    string
	groups  []DownloadGroup
}

// DownloadListMerge returns a write that merges groups into anime uuid
func DownloadListMerge(mediaID, uuid string, groups []DownloadGroup) Write {
	return downloadMerge{mediaID: mediaID, uuid: uuid, groups: groups}
}

// A record removed since the stage looked it up is not an error: the
// merge is dropped like any other not-yet-persisted reference.
func (w downloadMerge) apply(ctx context.Context, s *Store) error {
	changed, err := s.MergeDownloadList(ctx, w.mediaID, w.uuid, w.groups)
	if errors.Is(err, errors.ErrRecordNotFound) {
		logging.EnrichLogger(ctx, s.logger).Warn("Anime record vanished before merge, dropping download list",
			"media_id", w.mediaID,
			"uuid", w.uuid)
		return nil
	}
	if err == nil && !changed {
		logging.EnrichLogger(ctx, s.logger).Debug("Download list unchanged, write skipped",
			"media_id", w.mediaID,
			"uuid", w.uuid)
	}
	return err
}

func (w downloadMerge) String() string {
	return fmt.Sprintf("merge download_list %s uuid=%s", TableName(KindAnime, w.mediaID), w.uuid)
}

// Apply performs writes in order and stops at the first failure
func (s *Store) Apply(ctx context.Context, writes ...Write) error {
	for _, w := range writes {
		if err := w.apply(ctx, s); err != nil {
			return fmt.Errorf("%s: %w", w, err)
		}
		logging.EnrichLogger(ctx, s.logger).Debug("Write applied", "write", w.String())
	}
	return nil
}
