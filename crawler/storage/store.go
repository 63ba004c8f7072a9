package storage

import (
	"context"
	stderrors "errors"
	"log/slog"
	"reflect"
	"time"

	"github.com/NHYCRaymond/go-anime-crawler/errors"
	"github.com/NHYCRaymond/go-anime-crawler/logging"
	"github.com/NHYCRaymond/go-anime-crawler/monitoring"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Upsert outcomes reported to metrics
const (
	OutcomeWritten   = "written"
	OutcomeUnchanged = "unchanged"
	OutcomeMissing   = "missing"
	OutcomeError     = "error"
)

// Store performs idempotent writes into per-media tables
type Store struct {
	db     *gorm.DB
	tables *Registry
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Store
type Option func(*Store)

// WithClock replaces the time source used for created_at and updated_at
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithLogger sets the store logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore creates a store writing through tables
func NewStore(db *gorm.DB, tables *Registry, opts ...Option) *Store {
	s := &Store{
		db:     db,
		tables: tables,
		now:    time.Now,
		logger: logging.GetLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UpsertAnime inserts rec or updates the row sharing its (uuid, url).
// rec.URL is stored in normalized form.
func (s *Store) UpsertAnime(ctx context.Context, mediaID string, rec *AnimeRecord) error {
	rec.URL = NormalizeURL(rec.URL)
	if rec.UUID == "" {
		rec.UUID = RecordID(rec.URL)
	}
	return s.upsert(ctx, KindAnime, mediaID, rec, animeUpdateColumns, func(now time.Time) {
		rec.CreatedAt, rec.UpdatedAt = now, now
	})
}

// UpsertEpisode inserts rec or updates the row sharing its (uuid, url).
// rec.URL is stored in normalized form.
func (s *Store) UpsertEpisode(ctx context.Context, mediaID string, rec *EpisodeRecord) error {
	rec.URL = NormalizeURL(rec.URL)
	if rec.UUID == "" {
		rec.UUID = RecordID(rec.URL)
	}
	return s.upsert(ctx, KindEpisode, mediaID, rec, episodeUpdateColumns, func(now time.Time) {
		rec.CreatedAt, rec.UpdatedAt = now, now
	})
}

func (s *Store) upsert(ctx context.Context, kind Kind, mediaID string, rec any, columns []string, stamp func(time.Time)) error {
	table, err := s.tables.Resolve(ctx, kind, mediaID)
	if err != nil {
		return err
	}
	stamp(s.now())

	start := time.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Table(table).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "uuid"}, {Name: "url"}},
			DoUpdates: clause.AssignmentColumns(columns),
		}).Create(rec).Error
	})
	monitoring.RecordDBMetrics("upsert_"+string(kind), time.Since(start), err)

	if err != nil {
		monitoring.RecordUpsert(string(kind), OutcomeError)
		return errors.ErrPersistence.WithCause(err).WithMessage("upsert into %s failed", table)
	}
	monitoring.RecordUpsert(string(kind), OutcomeWritten)
	return nil
}

// FindAnime loads the anime record uuid. A missing row is ErrRecordNotFound.
func (s *Store) FindAnime(ctx context.Context, mediaID, uuid string) (*AnimeRecord, error) {
	table, err := s.tables.Resolve(ctx, KindAnime, mediaID)
	if err != nil {
		return nil, err
	}

	var rec AnimeRecord
	start := time.Now()
	err = s.db.WithContext(ctx).Table(table).Where("uuid = ?", uuid).First(&rec).Error
	monitoring.RecordDBMetrics("find_anime", time.Since(start), ignoreNotFound(err))

	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.ErrRecordNotFound.WithMessage("anime %s not found in %s", uuid, table)
	}
	if err != nil {
		return nil, errors.ErrPersistence.WithCause(err).WithMessage("lookup in %s failed", table)
	}
	return &rec, nil
}

// MergeDownloadList merges groups into the download list of anime uuid and
// reports whether the row changed. Merges that add nothing skip the write.
func (s *Store) MergeDownloadList(ctx context.Context, mediaID, uuid string, groups []DownloadGroup) (bool, error) {
	table, err := s.tables.Resolve(ctx, KindAnime, mediaID)
	if err != nil {
		return false, err
	}

	changed := false
	start := time.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec AnimeRecord
		if err := tx.Table(table).Where("uuid = ?", uuid).First(&rec).Error; err != nil {
			return err
		}

		merged := MergeDownloads(rec.DownloadList, groups)
		if reflect.DeepEqual(cloneGroups(rec.DownloadList), merged) {
			return nil
		}

		changed = true
		return tx.Table(table).Where("id = ?", rec.ID).Select("download_list", "updated_at").Updates(&AnimeRecord{
			DownloadList: merged,
			UpdatedAt:    s.now(),
		}).Error
	})
	monitoring.RecordDBMetrics("merge_download_list", time.Since(start), ignoreNotFound(err))

	switch {
	case stderrors.Is(err, gorm.ErrRecordNotFound):
		monitoring.RecordUpsert(string(KindAnime), OutcomeMissing)
		return false, errors.ErrRecordNotFound.WithMessage("anime %s not found in %s", uuid, table)
	case err != nil:
		monitoring.RecordUpsert(string(KindAnime), OutcomeError)
		return false, errors.ErrPersistence.WithCause(err).WithMessage("merge into %s failed", table)
	case !changed:
		monitoring.RecordUpsert(string(KindAnime), OutcomeUnchanged)
	default:
		monitoring.RecordUpsert(string(KindAnime), OutcomeWritten)
	}
	return changed, nil
}

func ignoreNotFound(err error) error {
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	return err
}
