package web

import (
	"io/fs"
	"regexp"
	"testing"
)

func TestParseTemplates(t *testing.T) {
	tmpl, err := ParseTemplates()
	if err != nil {
		t.Fatalf("ParseTemplates() error = %v", err)
	}
	for _, name := range []string{"index.html", "ledger"} {
		if tmpl.Lookup(name) == nil {
			t.Errorf("template %q not defined", name)
		}
	}
}

func TestStatic(t *testing.T) {
	for _, name := range []string{"app.css", "app.js"} {
		if _, err := fs.Stat(Static(), name); err != nil {
			t.Errorf("static asset %s: %v", name, err)
		}
	}
}

// Events the server sends in HX-Trigger.
var serverEvents = map[string]bool{"ledger:changed": true, "form:reset": true}

var bodyTrigger = regexp.MustCompile(`hx-trigger="([^"\s]+)[^"]*from:body`)

func TestBodyTriggersNameServerEvents(t *testing.T) {
	pages, err := fs.Glob(files, "templates/*.html")
	if err != nil || len(pages) == 0 {
		t.Fatalf("templates: %v (%d found)", err, len(pages))
	}
	for _, name := range pages {
		src, err := fs.ReadFile(files, name)
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		for _, m := range bodyTrigger.FindAllSubmatch(src, -1) {
			if !serverEvents[string(m[1])] {
				t.Errorf("%s listens for %q, which the server never sends", name, m[1])
			}
		}
	}
}
