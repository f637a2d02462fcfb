// Package web holds the templates and browser assets compiled into the
// tesouraria binary.
package web

import "embed"

// TemplatesFS holds the page layout, the page bodies and the htmx partials.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS holds app.css and app.js, served under /static/.
//
//go:embed static/*
var StaticFS embed.FS
