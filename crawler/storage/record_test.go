package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://Example.COM/anime/naruto/", "https://example.com/anime/naruto"},
		{"HTTPS://example.com:443/anime/naruto#eps", "https://example.com/anime/naruto"},
		{"http://example.com:8080/a?b=1", "http://example.com:8080/a?b=1"},
		{"https://example.com/", "https://example.com/"},
		{"  /relative/path  ", "/relative/path"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeURL(tt.in), tt.in)
	}
}

func TestRecordID(t *testing.T) {
	a := RecordID("https://example.com/anime/naruto/")
	b := RecordID("https://EXAMPLE.com/anime/naruto#top")

	assert.Equal(t, a, b)
	assert.Len(t, a, 32)
	assert.NotEqual(t, a, RecordID("https://example.com/anime/bleach"))
}

func TestMergeDownloads(t *testing.T) {
	existing := []DownloadGroup{{
		Title: "Batch",
		Data: []DownloadResolution{
			{Resolution: "360p", List: []DownloadLink{{Title: "Zippy", URL: "https://dl/1"}}},
		},
	}}
	incoming := []DownloadGroup{
		{
			Title: "Batch",
			Data: []DownloadResolution{
				{Resolution: "360p", List: []DownloadLink{{Title: "Zippy", URL: "https://dl/1"}, {Title: "Drive", URL: "https://dl/2"}}},
				{Resolution: "720p", List: []DownloadLink{{Title: "Drive", URL: "https://dl/3"}}},
			},
		},
		{Title: "OVA", Data: []DownloadResolution{{Resolution: "480p"}}},
	}

	merged := MergeDownloads(existing, incoming)

	assert.Equal(t, []DownloadGroup{
		{
			Title: "Batch",
			Data: []DownloadResolution{
				{Resolution: "360p", List: []DownloadLink{{Title: "Zippy", URL: "https://dl/1"}, {Title: "Drive", URL: "https://dl/2"}}},
				{Resolution: "720p", List: []DownloadLink{{Title: "Drive", URL: "https://dl/3"}}},
			},
		},
		{Title: "OVA", Data: []DownloadResolution{{Resolution: "480p"}}},
	}, merged)
	assert.Len(t, existing[0].Data, 1, "inputs are not mutated")
	assert.Equal(t, merged, MergeDownloads(merged, incoming), "merging is idempotent")
}
