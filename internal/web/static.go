package web

import (
	"embed"
)

// staticFiles holds the operator page served on "/".
//
//go:embed static/*
var staticFiles embed.FS
