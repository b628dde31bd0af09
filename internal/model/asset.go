package model

import (
	"path/filepath"
	"strings"
)

// AssetRecord describes a media file that was downloaded into the mirror.
type AssetRecord struct {
	// URL is the absolute source URL.
	URL string `json:"url"`

	// LocalPath is where the file was saved, including the export root.
	LocalPath string `json:"local_path"`

	// Type is the lower-cased file extension without the dot, e.g. "jpg".
	Type string `json:"type"`

	// Metadata holds EXIF tags read from the file, when present.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// NewAssetRecord builds a record whose type is derived from localPath.
func NewAssetRecord(url, localPath string) AssetRecord {
	return AssetRecord{
		URL:       url,
		LocalPath: localPath,
		Type:      MediaType(localPath),
	}
}

// MediaType returns the lower-cased extension of path without the dot.
func MediaType(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}

// HasEXIF reports whether files of this media type can carry EXIF data.
func HasEXIF(mediaType string) bool {
	switch mediaType {
	case "jpg", "jpeg", "tif", "tiff", "heic", "heif", "webp":
		return true
	default:
		return false
	}
}
