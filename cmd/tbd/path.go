package main

import (
	"path/filepath"
	"strings"
)

// writePathFor derives the output path for a descriptor extracted from
// sourcePath, rooted under outDir if non-empty, with suffix (without a
// leading dot) replacing sourcePath's own extension. Grounded in
// tbd_for_main_create_write_path from original_source/src/parse_dsc_for_main.c.
func writePathFor(outDir, sourcePath, suffix string) string {
	base := filepath.Base(sourcePath)
	if ext := filepath.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	name := base + "." + suffix
	if outDir == "" {
		return filepath.Join(filepath.Dir(sourcePath), name)
	}
	return filepath.Join(outDir, name)
}

// dscImagesDir derives the directory a DSC's per-image .tbd files are
// written under: the cache's own file name suffixed ".tbds", as the
// original does when recursing (is_recursing branch, suffix "tbds").
func dscImagesDir(outDir, cachePath string) string {
	base := filepath.Base(cachePath)
	if outDir == "" {
		return filepath.Join(filepath.Dir(cachePath), base+".tbds")
	}
	return filepath.Join(outDir, base+".tbds")
}
