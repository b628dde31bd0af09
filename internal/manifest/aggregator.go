package manifest

import (
	"cmp"
	"net/url"
	"slices"
	"sync"
	"time"

	"github.com/nao1215/sitemirror/internal/extract"
	"github.com/nao1215/sitemirror/internal/model"
)

// Aggregator collects the results of a run. It is safe for concurrent use.
type Aggregator struct {
	stats *model.Statistics

	mu         sync.Mutex
	siteInfo   model.SiteInfo
	rootSeen   bool
	pages      []model.PageRecord
	posts      []model.PageRecord
	media      []model.AssetRecord
	categories map[string]struct{}
	tags       map[string]struct{}
}

// New creates an Aggregator for the site at siteURL. stats holds the run
// counters reported by Statistics.
func New(siteURL string, stats *model.Statistics) *Aggregator {
	if stats == nil {
		stats = model.NewStatistics()
	}
	return &Aggregator{
		stats:      stats,
		siteInfo:   model.SiteInfo{URL: siteURL},
		categories: make(map[string]struct{}),
		tags:       make(map[string]struct{}),
	}
}

// AddPage stores rec as a page or post and folds its terms into the global
// category and tag sets. The root page of the site also names the site.
func (a *Aggregator) AddPage(rec model.PageRecord) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if rec.IsPost() {
		a.posts = append(a.posts, rec)
	} else {
		a.pages = append(a.pages, rec)
	}

	for _, c := range rec.Categories {
		a.categories[c] = struct{}{}
	}
	for _, t := range rec.Tags {
		a.tags[t] = struct{}{}
	}

	if !a.rootSeen && isRoot(rec.URL) {
		a.rootSeen = true
		a.siteInfo.Name = cmp.Or(rec.Meta[extract.MetaSiteName], rec.Title)
		a.siteInfo.Description = rec.Meta[extract.MetaDescription]
	}
}

// AddAsset stores a downloaded media file.
func (a *Aggregator) AddAsset(rec model.AssetRecord) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.media = append(a.media, rec)
}

// Manifest returns a snapshot of the collected content. Terms are sorted,
// records are ordered by URL and menus is always empty.
func (a *Aggregator) Manifest(exportDate time.Time) *model.Manifest {
	a.mu.Lock()
	defer a.mu.Unlock()

	info := a.siteInfo
	info.ExportDate = exportDate.Format(model.ExportDateLayout)

	return &model.Manifest{
		SiteInfo: info,
		Content: model.Content{
			Pages:      sortedRecords(a.pages),
			Posts:      sortedRecords(a.posts),
			Categories: sortedKeys(a.categories),
			Tags:       sortedKeys(a.tags),
			Media:      sortedMedia(a.media),
			Menus:      []string{},
		},
	}
}

// Statistics returns the run counters with the current taxonomy sizes.
func (a *Aggregator) Statistics() model.RunStatistics {
	a.mu.Lock()
	categories, tags := len(a.categories), len(a.tags)
	a.mu.Unlock()
	return a.stats.Snapshot(categories, tags)
}

// isRoot reports whether rawURL points at the site root.
func isRoot(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return (u.Path == "" || u.Path == "/") && u.RawQuery == ""
}

func sortedRecords(in []model.PageRecord) []model.PageRecord {
	out := slices.Clone(in)
	if out == nil {
		out = []model.PageRecord{}
	}
	slices.SortStableFunc(out, func(a, b model.PageRecord) int {
		return cmp.Compare(a.URL, b.URL)
	})
	return out
}

func sortedMedia(in []model.AssetRecord) []model.AssetRecord {
	out := slices.Clone(in)
	if out == nil {
		out = []model.AssetRecord{}
	}
	slices.SortStableFunc(out, func(a, b model.AssetRecord) int {
		return cmp.Compare(a.URL, b.URL)
	})
	return out
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
