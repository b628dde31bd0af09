// Package report writes the artifacts and summaries of an export run.
//
// The export root receives the manifest, the statistics and the list of
// discovered links as JSON and text files. A RunSummary can additionally
// be rendered as plain text for the terminal, as JSON, or as Markdown.
package report
