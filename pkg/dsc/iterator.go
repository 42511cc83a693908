package dsc

import (
	"github.com/appsworld/tbd/macho"
)

// ImageCallback is invoked once per image during Iterate, in image-table
// order. container is nil if the image's address could not be translated
// through the mapping table or if synthesising a bounded container for it
// failed; path is "" if the image's path string could not be read. Neither
// failure stops the walk (spec §7: "one bad image does not stop the walk");
// the callback decides what to do with a nil container or empty path.
//
// Returning false cancels the walk immediately (spec §5 cancellation);
// Iterate returns nil in that case, the same as running to completion.
//
// This extends the literal (image, path, ctx) signature sketched in spec
// §4.I with the synthesized container, without which a caller has no way to
// actually read the image it was just told about.
type ImageCallback func(image ImageInfo, path string, container *macho.Container, ctx any) bool

// Iterate walks every image in info's image table, synthesising a
// macho.Container rooted at the image's mapped location and invoking cb for
// each. Images with AlreadyExtracted set are still reported (path and
// container resolved as usual) so a caller doing selective re-extraction can
// see the full table; it is the caller's job to skip or act on that flag.
//
// Synthesis is two-phase: a DSC image has no header-level "total size" the
// way a standalone Mach-O file does, so Iterate first opens a widely bounded
// container running to the end of the cache, asks it for its segment
// extent, then re-opens a narrowly bounded container covering just that
// extent. The narrow container is what's passed to cb.
func (info *Info) Iterate(ctx any, cb ImageCallback) error {
	for i := range info.images {
		image := info.images[i]

		path, _ := info.ImagePath(image)

		container, _ := info.synthesizeContainer(image)

		if !cb(image, path, container, ctx) {
			return nil
		}
	}
	return nil
}

// synthesizeContainer builds a macho.Container bounded to image's own
// segment extent within the cache.
func (info *Info) synthesizeContainer(image ImageInfo) (*macho.Container, error) {
	base, err := info.Translate(image.Address)
	if err != nil {
		return nil, err
	}

	wide, err := info.stream.Subrange(base, info.stream.Size()-base)
	if err != nil {
		return nil, err
	}
	wideContainer, err := macho.Open(wide, macho.OpenOptions{})
	if err != nil {
		return nil, err
	}

	extent, err := wideContainer.SegmentExtent()
	if err != nil {
		return nil, err
	}

	narrow, err := info.stream.Subrange(base, extent)
	if err != nil {
		return nil, err
	}
	return macho.Open(narrow, macho.OpenOptions{})
}
