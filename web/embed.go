// Package web embeds the tracker UI so the binary ships self-contained.
package web

import "embed"

// TemplatesFS holds the server-rendered pages.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS holds the client assets (stylesheet and tracker script).
//
//go:embed static/*
var StaticFS embed.FS
