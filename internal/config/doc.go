// Package config provides configuration structures and loaders for sitemirror.
// Values come from built-in defaults, the .sitemirror YAML file, the
// environment (optionally seeded from a .env file) and CLI flags.
package config
