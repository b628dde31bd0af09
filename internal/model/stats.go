package model

import "sync/atomic"

// Statistics holds the run counters. It is safe for concurrent use and
// every counter only ever increases.
type Statistics struct {
	pagesProcessed   atomic.Int64
	assetsDownloaded atomic.Int64
	errors           atomic.Int64
	postsFound       atomic.Int64
}

// RunStatistics is a point-in-time copy of the counters, serialized as
// export_statistics.json.
type RunStatistics struct {
	PagesProcessed   int64 `json:"pages_processed"`
	AssetsDownloaded int64 `json:"assets_downloaded"`
	Errors           int64 `json:"errors"`
	PostsFound       int64 `json:"posts_found"`
	CategoriesFound  int64 `json:"categories_found"`
	TagsFound        int64 `json:"tags_found"`
}

// NewStatistics returns zeroed counters.
func NewStatistics() *Statistics {
	return &Statistics{}
}

// PageProcessed counts one exported page, and one post when isPost is true.
func (s *Statistics) PageProcessed(isPost bool) {
	s.pagesProcessed.Add(1)
	if isPost {
		s.postsFound.Add(1)
	}
}

// AssetDownloaded counts one asset written to disk.
func (s *Statistics) AssetDownloaded() {
	s.assetsDownloaded.Add(1)
}

// Error counts one failed page or asset and returns the new total.
func (s *Statistics) Error() int64 {
	return s.errors.Add(1)
}

// Errors returns the current error count.
func (s *Statistics) Errors() int64 {
	return s.errors.Load()
}

// Snapshot copies the counters. Taxonomy counts are owned by the
// aggregator and passed in.
func (s *Statistics) Snapshot(categories, tags int) RunStatistics {
	return RunStatistics{
		PagesProcessed:   s.pagesProcessed.Load(),
		AssetsDownloaded: s.assetsDownloaded.Load(),
		Errors:           s.errors.Load(),
		PostsFound:       s.postsFound.Load(),
		CategoriesFound:  int64(categories),
		TagsFound:        int64(tags),
	}
}
