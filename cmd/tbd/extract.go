package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/appsworld/tbd/internal/bitset"
	"github.com/appsworld/tbd/macho"
	"github.com/appsworld/tbd/pkg/dsc"
	"github.com/appsworld/tbd/pkg/fat"
	"github.com/appsworld/tbd/pkg/iohelp"
	"github.com/appsworld/tbd/pkg/tbd"
	"github.com/appsworld/tbd/types"
)

// selectors narrows which DSC images get extracted; an empty selectors
// means "every image", matching the original's parse_all_images default.
type selectors struct {
	filters []string
	paths   []string
	images  []int // 1-based, per the original's "numbers" selector
}

func (s selectors) empty() bool {
	return len(s.filters) == 0 && len(s.paths) == 0 && len(s.images) == 0
}

// matches reports whether the image at the given 1-based table index and
// path should be extracted.
func (s selectors) matches(index int, path string) bool {
	if s.empty() {
		return true
	}
	for _, n := range s.images {
		if n == index {
			return true
		}
	}
	for _, p := range s.paths {
		if p == path {
			return true
		}
	}
	for _, f := range s.filters {
		if strings.Contains(path, f) {
			return true
		}
	}
	return false
}

// extractPath dispatches a single input path to the appropriate handler
// depending on its magic, mirroring the core's own classify-then-dispatch
// control flow (spec §2).
func extractPath(path, outDir string, sel selectors, listOnly bool, stats *tbd.Stats) error {
	mf, stream, err := openMapped(path)
	if err != nil {
		return err
	}
	defer mf.Close()

	head, err := stream.ReadAt(0, 16)
	if err != nil {
		return fmt.Errorf("%s: reading magic: %w", path, err)
	}
	kind := types.ClassifyMagic(head)

	switch {
	case kind == types.KindDSC:
		return extractDSC(path, outDir, stream, sel, listOnly, stats)
	case kind.IsFat():
		return extractFat(path, outDir, stream, kind, stats)
	case kind.IsMach():
		return extractSingle(path, outDir, stream, stats)
	default:
		return fmt.Errorf("%s: not a recognised Mach-O, fat, or dyld shared cache file", path)
	}
}

func extractSingle(path, outDir string, stream *iohelp.Stream, stats *tbd.Stats) error {
	c, err := macho.OpenAsDynamicLibrary(stream, macho.OpenOptions{IgnoreInvalidFields: true})
	if err != nil {
		stats.RecordFailure(err.Error())
		return fmt.Errorf("%s: %w", path, err)
	}
	d, err := tbd.Build(c)
	if err != nil {
		stats.RecordFailure(err.Error())
		return fmt.Errorf("%s: %w", path, err)
	}
	return writeDescriptor(writePathFor(outDir, path, "tbd"), d, stats)
}

func extractFat(path, outDir string, stream *iohelp.Stream, kind types.MagicKind, stats *tbd.Stats) error {
	is64 := kind == types.KindFat64LE || kind == types.KindFat64BE
	arches, err := fat.Enumerate(stream, kind.Endian(), is64, fat.Options{MaxArches: 1024})
	if err != nil {
		stats.RecordFailure(err.Error())
		return fmt.Errorf("%s: %w", path, err)
	}
	log.Debugf("%s: %d fat arches", path, len(arches))

	var d *tbd.Descriptor
	for i, a := range arches {
		sub, err := stream.Subrange(int64(a.Offset), int64(a.Size))
		if err != nil {
			log.Warnf("%s: arch %d: %v", path, i, err)
			continue
		}
		c, err := macho.OpenAsDynamicLibrary(sub, macho.OpenOptions{IgnoreInvalidFields: true})
		if err != nil {
			log.Warnf("%s: arch %d: %v", path, i, err)
			continue
		}
		ad, err := tbd.Build(c)
		if err != nil {
			log.Warnf("%s: arch %d: %v", path, i, err)
			continue
		}
		if d == nil {
			d = ad
			continue
		}
		d.Architectures = append(d.Architectures, ad.Architectures...)
		d.Exports = append(d.Exports, ad.Exports...)
	}
	if d == nil {
		stats.RecordFailure("no arch in fat file parsed successfully")
		return fmt.Errorf("%s: no arch parsed successfully", path)
	}
	return writeDescriptor(writePathFor(outDir, path, "tbd"), d, stats)
}

func extractDSC(path, outDir string, stream *iohelp.Stream, sel selectors, listOnly bool, stats *tbd.Stats) error {
	info, err := dsc.Parse(stream, dsc.Options{ZeroImagePads: true})
	if err != nil {
		stats.RecordFailure(err.Error())
		return fmt.Errorf("%s: %w", path, err)
	}

	if listOnly {
		for i, img := range info.Images() {
			imgPath, _ := info.ImagePath(img)
			fmt.Printf("%d: %s\n", i+1, imgPath)
		}
		return nil
	}

	imagesDir := dscImagesDir(outDir, path)
	index := 0
	var iterErr error
	var written bitset.Set
	err = info.Iterate(nil, func(image dsc.ImageInfo, imgPath string, container *macho.Container, _ any) bool {
		index++
		if image.AlreadyExtracted() || written.Test(index) {
			return true
		}
		if !sel.matches(index, imgPath) {
			return true
		}
		if imgPath == "" {
			log.Warnf("%s: image %d: could not resolve path", path, index)
			stats.RecordFailure("unresolved image path")
			return true
		}
		if container == nil {
			log.Warnf("%s: %s: could not synthesise container", path, imgPath)
			stats.RecordFailure("container synthesis failed")
			return true
		}
		d, err := tbd.Build(container)
		if err != nil {
			log.Warnf("%s: %s: %v", path, imgPath, err)
			stats.RecordFailure(err.Error())
			return true
		}
		out := filepath.Join(imagesDir, filepath.Base(imgPath)+".tbd")
		if werr := writeDescriptor(out, d, stats); werr != nil {
			iterErr = werr
			return true
		}
		info.Images()[index-1].MarkExtracted()
		written.Set(index)
		return true
	})
	if err != nil {
		return err
	}
	return iterErr
}

func writeDescriptor(outPath string, d *tbd.Descriptor, stats *tbd.Stats) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		stats.RecordFailure(err.Error())
		return err
	}
	f, err := os.Create(outPath)
	if err != nil {
		stats.RecordFailure(err.Error())
		return err
	}
	defer f.Close()
	if err := tbd.WriteTo(f, d); err != nil {
		stats.RecordFailure(err.Error())
		return err
	}
	stats.RecordWritten()
	log.Infof("wrote %s", outPath)
	return nil
}

func parseImageNumbers(raw []string) ([]int, error) {
	out := make([]int, 0, len(raw))
	for _, s := range raw {
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("invalid --image value %q: %w", s, err)
		}
		out = append(out, n)
	}
	return out, nil
}
