package model

// ExportDateLayout formats SiteInfo.ExportDate.
const ExportDateLayout = "2006-01-02 15:04:05"

// SiteInfo describes the mirrored site.
type SiteInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	URL         string `json:"url"`
	ExportDate  string `json:"export_date"`
}

// Content holds everything extracted during a run.
// Every slice is sorted before serialization.
type Content struct {
	Pages      []PageRecord  `json:"pages"`
	Posts      []PageRecord  `json:"posts"`
	Categories []string      `json:"categories"`
	Tags       []string      `json:"tags"`
	Media      []AssetRecord `json:"media"`
	Menus      []string      `json:"menus"`
}

// Manifest is the content of wordpress_export.json.
type Manifest struct {
	SiteInfo SiteInfo `json:"site_info"`
	Content  Content  `json:"content"`
}

// TotalPages returns the number of pages and posts in the manifest.
func (m *Manifest) TotalPages() int {
	return len(m.Content.Pages) + len(m.Content.Posts)
}
