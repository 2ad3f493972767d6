// Package web carries the compiled-in assets of the front office: the page
// and layout templates plus the stylesheet and search/print scripts, so the
// binary deploys without a web root on disk.
package web

import "embed"

// Templates holds the layouts, partials and dashboard pages.
//
//go:embed templates/**/*.html
var Templates embed.FS

// Static holds the stylesheet and the search and print scripts.
//
//go:embed static/**/*
var Static embed.FS
