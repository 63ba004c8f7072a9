package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/NHYCRaymond/go-anime-crawler/errors"
	"github.com/patrickmn/go-cache"
	"gorm.io/gorm"
)

// Kind is the logical entity stored in a per-media table
type Kind string

const (
	KindAnime   Kind = "anime"
	KindEpisode Kind = "episode"
)

// TableName returns the physical table for kind and mediaID
func TableName(kind Kind, mediaID string) string {
	return string(kind) + "_" + mediaID
}

// Registry resolves (kind, mediaID) to a table. Only media listed at
// construction resolve; table existence is probed once per TTL.
type Registry struct {
	db       *gorm.DB
	mediaIDs map[string]struct{}
	kinds    []Kind
	checked  *cache.Cache
}

// NewRegistry creates a registry for mediaIDs holding tables of kinds
func NewRegistry(db *gorm.DB, mediaIDs []string, kinds ...Kind) *Registry {
	if len(kinds) == 0 {
		kinds = []Kind{KindAnime}
	}
	ids := make(map[string]struct{}, len(mediaIDs))
	for _, id := range mediaIDs {
		if id = strings.TrimSpace(id); id != "" {
			ids[id] = struct{}{}
		}
	}
	return &Registry{
		db:       db,
		mediaIDs: ids,
		kinds:    kinds,
		checked:  cache.New(10*time.Minute, 20*time.Minute),
	}
}

// Validate checks that every registered table exists
func (r *Registry) Validate(ctx context.Context) error {
	if len(r.mediaIDs) == 0 {
		return errors.ErrConfiguration.WithMessage("no media ids registered")
	}

	var missing []string
	for id := range r.mediaIDs {
		for _, kind := range r.kinds {
			if _, err := r.Resolve(ctx, kind, id); err != nil {
				missing = append(missing, TableName(kind, id))
			}
		}
	}
	if len(missing) > 0 {
		return errors.ErrTableNotFound.WithMessage("missing tables: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Resolve returns the table for kind and mediaID. Unregistered media and
// absent tables are configuration errors.
func (r *Registry) Resolve(ctx context.Context, kind Kind, mediaID string) (string, error) {
	if _, ok := r.mediaIDs[mediaID]; !ok {
		return "", errors.ErrTableNotFound.WithMessage("media %q is not registered", mediaID)
	}

	table := TableName(kind, mediaID)
	if _, ok := r.checked.Get(table); ok {
		return table, nil
	}

	if !r.db.WithContext(ctx).Migrator().HasTable(table) {
		return "", errors.ErrTableNotFound.WithMessage("table %s does not exist", table)
	}
	r.checked.SetDefault(table, struct{}{})
	return table, nil
}

// Migrate creates or updates the tables of every registered media
func (r *Registry) Migrate(ctx context.Context) error {
	for id := range r.mediaIDs {
		for _, kind := range r.kinds {
			var model any = &AnimeRecord{}
			if kind == KindEpisode {
				model = &EpisodeRecord{}
			}
			table := TableName(kind, id)
			if err := r.db.WithContext(ctx).Table(table).AutoMigrate(model); err != nil {
				return fmt.Errorf("failed to migrate table %s: %w", table, err)
			}
		}
	}
	return nil
}
