package web

import "embed"

// Pages embeds the dashboard shell pages served by the router.
//
//go:embed pages/*.html
var Pages embed.FS

// Static embeds stylesheets and scripts referenced by the pages.
//
//go:embed static/**/*
var Static embed.FS
