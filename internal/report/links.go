package report

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/nao1215/sitemirror/internal/site"
)

// WriteLinks writes the sorted links into root, one per line in
// all_internal_links.txt and as an array in all_internal_links.json.
// files, the linked URLs served as non-HTML documents, go to
// linked_files.txt.
func WriteLinks(root string, links, files []string) error {
	sorted := sortedLines(links)
	if err := writeLines(filepath.Join(root, FileLinksText), sorted); err != nil {
		return err
	}
	if err := writeJSONFile(filepath.Join(root, FileLinksJSON), sorted); err != nil {
		return err
	}
	return writeLines(filepath.Join(root, FileLinkedText), sortedLines(files))
}

// LinkSet is the discovery result recorded in an export root.
type LinkSet struct {
	Links []string
	Files []string
}

// ReadLinks loads the discovery result of a previous run from root.
// It reports false when root holds no finished discovery, that is when
// all_internal_links.txt or export_statistics.json is missing.
// A missing linked_files.txt means no linked files.
func ReadLinks(root string) (*LinkSet, bool, error) {
	for _, name := range []string{FileLinksText, FileStatistics} {
		if !site.IsFile(filepath.Join(root, name)) {
			return nil, false, nil
		}
	}

	links, err := readLines(filepath.Join(root, FileLinksText))
	if err != nil {
		return nil, false, err
	}
	files, err := readLines(filepath.Join(root, FileLinkedText))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, false, err
	}

	return &LinkSet{Links: links, Files: files}, true, nil
}

func sortedLines(lines []string) []string {
	sorted := slices.Clone(lines)
	if sorted == nil {
		sorted = []string{}
	}
	slices.Sort(sorted)
	return sorted
}

func writeLines(path string, lines []string) error {
	var sb strings.Builder
	for _, line := range lines {
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	return site.WriteFile(path, strings.NewReader(sb.String()))
}

// readLines returns the non-empty trimmed lines of path.
func readLines(path string) ([]string, error) {
	f, err := os.Open(path) //nolint:gosec // path is inside the export root
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	return lines, nil
}
