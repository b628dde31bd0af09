package asset

import (
	"io"
	"os"

	exif "github.com/dsoprea/go-exif/v3"
)

// maxEXIFScan limits how much of a file is searched for an EXIF block.
const maxEXIFScan = 5 * 1024 * 1024

// exifTags are the EXIF tags copied into AssetRecord metadata.
var exifTags = map[string]bool{
	"Make":             true,
	"Model":            true,
	"DateTimeOriginal": true,
	"Artist":           true,
	"Copyright":        true,
	"Software":         true,
}

// ReadEXIF returns the descriptive EXIF tags of the image at path.
// Files without EXIF data yield nil.
func ReadEXIF(path string) map[string]string {
	f, err := os.Open(path) //nolint:gosec // path is inside the export root
	if err != nil {
		return nil
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxEXIFScan))
	if err != nil {
		return nil
	}

	rawExif, err := exif.SearchAndExtractExif(data)
	if err != nil || rawExif == nil {
		return nil
	}

	entries, _, err := exif.GetFlatExifData(rawExif, nil)
	if err != nil {
		return nil
	}

	var tags map[string]string
	for _, entry := range entries {
		if !exifTags[entry.TagName] || entry.Formatted == "" {
			continue
		}
		if tags == nil {
			tags = make(map[string]string)
		}
		if _, ok := tags[entry.TagName]; !ok {
			tags[entry.TagName] = entry.Formatted
		}
	}
	return tags
}
