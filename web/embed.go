// Package web carries the page templates and browser assets compiled into
// the binary.
package web

import (
	"embed"
	"html/template"
	"io/fs"
)

//go:embed templates/*.html static/*
var files embed.FS

// ParseTemplates parses every page and partial template.
func ParseTemplates() (*template.Template, error) {
	return template.ParseFS(files, "templates/*.html")
}

// Static serves the contents of static/ at its root.
func Static() fs.FS {
	sub, err := fs.Sub(files, "static")
	if err != nil {
		// static/ is embedded above; fs.Sub only fails on a malformed path.
		panic(err)
	}
	return sub
}
