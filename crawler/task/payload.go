package task

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/NHYCRaymond/go-anime-crawler/crawler/extractor"
	"github.com/NHYCRaymond/go-anime-crawler/errors"
)

// CrawlPayload is the message body passed between stages. A payload is
// never mutated after it is published; the For* helpers return copies.
type CrawlPayload struct {
	SourceID string `json:"source_id"`
	MediaID  string `json:"media_id"`
	MediaURL string `json:"media_url"`
	PageURL  string `json:"page_url"`
	PageNum  int    `json:"page_num"`

	// DataID is the persisted anime record the message refers to. Set by
	// the Detail stage for Episode and Link messages.
	DataID string `json:"data_id,omitempty"`

	PatternIndex  []extractor.PatternSpec `json:"pattern_index,omitempty"`
	PatternDetail []extractor.PatternSpec `json:"pattern_detail,omitempty"`
	PatternWatch  []extractor.PatternSpec `json:"pattern_watch,omitempty"`
	PatternLink   []extractor.PatternSpec `json:"pattern_link,omitempty"`
}

// Decode parses a message body. Bodies that are empty, not JSON, or lack a
// page URL are malformed and must be dead-lettered.
func Decode(body []byte) (*CrawlPayload, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) || bytes.Equal(body, []byte("{}")) {
		return nil, errors.ErrEmptyMessage
	}

	var p CrawlPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, errors.ErrMalformedMessage.WithCause(err)
	}
	if strings.TrimSpace(p.PageURL) == "" {
		return nil, errors.ErrMalformedMessage.WithMessage("payload has no page_url")
	}
	return &p, nil
}

// Encode serializes the payload for publishing
func (p CrawlPayload) Encode() ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	return data, nil
}

// Patterns returns the pattern list a stage consumes
func (p CrawlPayload) Patterns(stage Stage) []extractor.PatternSpec {
	switch stage {
	case StageIndex:
		return p.PatternIndex
	case StageDetail:
		return p.PatternDetail
	case StageEpisode:
		return p.PatternWatch
	case StageLink:
		return p.PatternLink
	}
	return nil
}

// Validate checks the pattern lists carried by the payload
func (p CrawlPayload) Validate() error {
	for _, stage := range Stages() {
		if err := extractor.Validate(p.Patterns(stage)); err != nil {
			return errors.ErrConfiguration.WithMessage("invalid %s patterns: %v", stage, err)
		}
	}
	return nil
}

// ForDetail builds the Detail message for a page found on an index page.
// The index patterns are dropped; the other pattern sets travel unchanged.
func (p CrawlPayload) ForDetail(pageURL string) CrawlPayload {
	next := p
	next.PageURL = pageURL
	next.DataID = ""
	next.PatternIndex = nil
	return next
}

// ForEpisode builds an Episode message for the record dataID
func (p CrawlPayload) ForEpisode(pageURL, dataID string) CrawlPayload {
	next := p
	next.PageURL = pageURL
	next.DataID = dataID
	next.PatternIndex = nil
	return next
}

// ForLink builds a Link message for the record dataID
func (p CrawlPayload) ForLink(pageURL, dataID string) CrawlPayload {
	return p.ForEpisode(pageURL, dataID)
}

// ForPage builds an Index message for one listing page of a source
func (p CrawlPayload) ForPage(pageURL string, pageNum int) CrawlPayload {
	next := p
	next.PageURL = pageURL
	next.PageNum = pageNum
	next.DataID = ""
	return next
}
