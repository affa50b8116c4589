package search

import (
	"encoding/json"
	"os"
	"time"
)

// Hit is one search result item. URL is the key within a round.
type Hit struct {
	URL     string `json:"link" mapstructure:"link"`
	Title   string `json:"title" mapstructure:"title"`
	Snippet string `json:"snippet" mapstructure:"snippet"`
}

// Hits is an ordered list of search results.
type Hits struct {
	Items []*Hit
}

func (h *Hits) Len() int {
	if h == nil {
		return 0
	}
	return len(h.Items)
}

func (h *Hits) URLs() []string {
	urls := make([]string, 0, h.Len())
	for _, hit := range h.Items {
		urls = append(urls, hit.URL)
	}
	return urls
}

// Dedupe removes hits with an empty or already seen URL, keeping the first
// occurrence and the original order. It returns the dropped URLs.
func (h *Hits) Dedupe() []string {
	seen := make(map[string]bool, h.Len())
	kept := make([]*Hit, 0, h.Len())
	var dropped []string

	for _, hit := range h.Items {
		if hit == nil || hit.URL == "" {
			continue
		}
		if seen[hit.URL] {
			dropped = append(dropped, hit.URL)
			continue
		}
		seen[hit.URL] = true
		kept = append(kept, hit)
	}

	h.Items = kept
	return dropped
}

// Exclude removes hits whose URL is in targets, preserving order.
func (h *Hits) Exclude(targets []string) []string {
	if len(targets) == 0 {
		return nil
	}

	drop := make(map[string]bool, len(targets))
	for _, t := range targets {
		drop[t] = true
	}

	kept := make([]*Hit, 0, h.Len())
	var excluded []string
	for _, hit := range h.Items {
		if drop[hit.URL] {
			excluded = append(excluded, hit.URL)
			continue
		}
		kept = append(kept, hit)
	}

	h.Items = kept
	return excluded
}

// ReviewedHits is the on-disk list of URLs an operator has already reviewed.
type ReviewedHits struct {
	Items []*ReviewedHit
}

type ReviewedHit struct {
	URL        string
	Title      string
	ReviewedAt time.Time
}

func (h *Hits) ToReviewed() *ReviewedHits {
	reviewed := &ReviewedHits{}
	for _, hit := range h.Items {
		reviewed.Items = append(reviewed.Items, &ReviewedHit{
			URL:        hit.URL,
			Title:      hit.Title,
			ReviewedAt: time.Now().UTC(),
		})
	}
	return reviewed
}

// GetReviewedFromFile loads the reviewed list. A missing or empty file yields an empty list.
func GetReviewedFromFile(path string) (*ReviewedHits, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &ReviewedHits{}, nil
		}
		return nil, err
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, err
	}

	if stat.Size() == 0 {
		return &ReviewedHits{}, nil
	}

	var reviewed ReviewedHits
	if err := json.NewDecoder(file).Decode(&reviewed); err != nil {
		return nil, err
	}
	return &reviewed, nil
}

func (r *ReviewedHits) Append(s *ReviewedHits) {
	r.Items = append(r.Items, s.Items...)
}

func (r *ReviewedHits) URLs() []string {
	urls := make([]string, 0, len(r.Items))
	for _, item := range r.Items {
		urls = append(urls, item.URL)
	}
	return urls
}

func (r *ReviewedHits) ToFile(path string) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
