// Package web holds the dashboard's templates and static assets, compiled
// into the binaries.
package web

import "embed"

//go:embed templates/*.html
var TemplatesFS embed.FS

//go:embed static/*
var StaticFS embed.FS
