package storage

import (
	"crypto/md5"
	"encoding/hex"
	"net/url"
	"strings"
	"time"
)

// DownloadLink is one mirror of a file
type DownloadLink struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// DownloadResolution groups the mirrors of one quality
type DownloadResolution struct {
	Resolution string         `json:"resolution"`
	List       []DownloadLink `json:"list"`
}

// DownloadGroup is one titled block of downloads, e.g. a batch or an episode
type DownloadGroup struct {
	Title string               `json:"title"`
	Data  []DownloadResolution `json:"data"`
}

// AnimeRecord is one anime detail page. The table name is resolved per
// media, so the struct carries no TableName.
type AnimeRecord struct {
	ID   uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	URL  string `gorm:"column:url;type:varchar(512);not null;index:,unique,composite:uuid_url,priority:2" json:"url"`
	UUID string `gorm:"column:uuid;type:char(32);not null;index:,unique,composite:uuid_url,priority:1" json:"uuid"`

	SourceID     string            `gorm:"column:source_id;type:varchar(64)" json:"source_id"`
	Title        string            `gorm:"column:title;type:varchar(255)" json:"title"`
	AltTitle     string            `gorm:"column:alt_title;type:varchar(255)" json:"alt_title"`
	Poster       string            `gorm:"column:poster;type:varchar(512)" json:"poster"`
	Synopsis     string            `gorm:"column:synopsis;type:text" json:"synopsis"`
	Score        string            `gorm:"column:score;type:varchar(16)" json:"score"`
	Status       string            `gorm:"column:status;type:varchar(32)" json:"status"`
	Type         string            `gorm:"column:type;type:varchar(32)" json:"type"`
	Studio       string            `gorm:"column:studio;type:varchar(128)" json:"studio"`
	TotalEpisode string            `gorm:"column:total_episode;type:varchar(16)" json:"total_episode"`
	ReleaseDate  string            `gorm:"column:release_date;type:varchar(32)" json:"release_date"`
	Genres       []string          `gorm:"column:genres;type:text;serializer:json" json:"genres"`
	Info         map[string]string `gorm:"column:info;type:text;serializer:json" json:"info"`
	EpisodeURL   string            `gorm:"column:episode_url;type:varchar(512)" json:"episode_url"`
	BatchURL     string            `gorm:"column:batch_url;type:varchar(512)" json:"batch_url"`
	DownloadList []DownloadGroup   `gorm:"column:download_list;type:text;serializer:json" json:"download_list"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime:false" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime:false" json:"updated_at"`
}

// EpisodeRecord is one episode page with its streaming mirrors and downloads
type EpisodeRecord struct {
	ID   uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	URL  string `gorm:"column:url;type:varchar(512);not null;index:,unique,composite:uuid_url,priority:2" json:"url"`
	UUID string `gorm:"column:uuid;type:char(32);not null;index:,unique,composite:uuid_url,priority:1" json:"uuid"`

	AnimeUUID    string          `gorm:"column:anime_uuid;type:char(32);index" json:"anime_uuid"`
	Title        string          `gorm:"column:title;type:varchar(255)" json:"title"`
	Mirrors      []string        `gorm:"column:mirrors;type:text;serializer:json" json:"mirrors"`
	DownloadList []DownloadGroup `gorm:"column:download_list;type:text;serializer:json" json:"download_list"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime:false" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime:false" json:"updated_at"`
}

var animeUpdateColumns = []string{
	"source_id", "title", "alt_title", "poster", "synopsis", "score", "status", "type",
	"studio", "total_episode", "release_date", "genres", "info", "episode_url", "batch_url",
	"updated_at",
}

var episodeUpdateColumns = []string{
	"anime_uuid", "title", "mirrors", "download_list", "updated_at",
}

// NormalizeURL canonicalizes a page URL so equivalent spellings share one
// record: scheme and host are lowercased, default ports, fragments and a
// trailing slash are dropped.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}

	u.Scheme = strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	if port := u.Port(); port != "" && !(port == "80" && u.Scheme == "http") && !(port == "443" && u.Scheme == "https") {
		host += ":" + port
	}
	u.Host = host
	u.Fragment = ""
	u.RawFragment = ""
	if len(u.Path) > 1 {
		u.Path = strings.TrimRight(u.Path, "/")
		u.RawPath = ""
	}
	return u.String()
}

// RecordID derives the content-hash identifier of a page URL
func RecordID(rawURL string) string {
	sum := md5.Sum([]byte(NormalizeURL(rawURL)))
	return hex.EncodeToString(sum[:])
}

// MergeDownloads folds incoming groups into existing ones. Groups match by
// title, resolutions by name, and links by URL; nothing is removed.
func MergeDownloads(existing, incoming []DownloadGroup) []DownloadGroup {
	merged := cloneGroups(existing)

	for _, in := range incoming {
		gi := -1
		for i := range merged {
			if merged[i].Title == in.Title {
				gi = i
				break
			}
		}
		if gi < 0 {
			merged = append(merged, cloneGroups([]DownloadGroup{in})...)
			continue
		}

		for _, res := range in.Data {
			ri := -1
			for i := range merged[gi].Data {
				if merged[gi].Data[i].Resolution == res.Resolution {
					ri = i
					break
				}
			}
			if ri < 0 {
				merged[gi].Data = append(merged[gi].Data, DownloadResolution{
					Resolution: res.Resolution,
					List:       append([]DownloadLink(nil), res.List...),
				})
				continue
			}

			target := &merged[gi].Data[ri]
			for _, link := range res.List {
				if !hasLink(target.List, link.URL) {
					target.List = append(target.List, link)
				}
			}
		}
	}
	return merged
}

func hasLink(list []DownloadLink, u string) bool {
	for _, l := range list {
		if l.URL == u {
			return true
		}
	}
	return false
}

func cloneGroups(groups []DownloadGroup) []DownloadGroup {
	out := make([]DownloadGroup, 0, len(groups))
	for _, g := range groups {
		data := make([]DownloadResolution, 0, len(g.Data))
		for _, r := range g.Data {
			data = append(data, DownloadResolution{
				Resolution: r.Resolution,
				List:       append([]DownloadLink(nil), r.List...),
			})
		}
		out = append(out, DownloadGroup{Title: g.Title, Data: data})
	}
	return out
}
