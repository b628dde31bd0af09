// Package site holds the URL rules shared by discovery and export: which
// URLs belong to the target domain, how references resolve, and where a
// URL lands inside the export root.
package site
