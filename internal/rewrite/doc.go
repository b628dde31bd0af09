// Package rewrite replaces every reference to the mirrored domain in a
// document with the replacement base URL.
//
// Rewriting works on the serialized text so that occurrences outside of
// attributes (inline scripts, data attributes, plain text) are caught too.
package rewrite
