// Package allowlist downloads an extra list of URLs into the export root.
//
// The list is a plain text file with one URL per line. Each URL is saved
// byte for byte under its last path segment; nothing is parsed, rewritten
// or restricted to the target domain. A record of the requested URLs is
// written next to the downloads.
package allowlist
