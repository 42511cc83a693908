// Command tbd reads Mach-O binaries, fat archives, and dyld shared caches
// and generates text-based API (.tbd) descriptor files for them, the way
// the original tbd tool generated stub files for library linking.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/appsworld/tbd/pkg/tbd"
)

var (
	flagOutput   string
	flagVerbose  bool
	flagRecurse  bool
	flagList     bool
	flagFilters  []string
	flagPaths    []string
	flagImageIDs []string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "tbd:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tbd [paths...]",
		Short: "Generate .tbd descriptor files from Mach-O binaries and dyld shared caches",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runRoot,
	}

	cmd.Flags().StringVarP(&flagOutput, "output", "o", "", "directory to write .tbd files under (default: alongside the source)")
	cmd.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	cmd.Flags().BoolVarP(&flagRecurse, "recurse", "r", false, "recurse into directories")
	cmd.Flags().BoolVar(&flagList, "list-dsc-images", false, "list a dyld shared cache's images instead of extracting them")
	cmd.Flags().StringSliceVar(&flagFilters, "filter", nil, "only extract dyld shared cache images whose path contains this substring (repeatable)")
	cmd.Flags().StringSliceVar(&flagPaths, "path", nil, "only extract the dyld shared cache image with this exact path (repeatable)")
	cmd.Flags().StringSliceVar(&flagImageIDs, "image", nil, "only extract the dyld shared cache image at this 1-based table index (repeatable)")

	return cmd
}

func runRoot(cmd *cobra.Command, args []string) error {
	if flagVerbose {
		enableVerboseLogging()
	}

	imageNums, err := parseImageNumbers(flagImageIDs)
	if err != nil {
		return err
	}
	sel := selectors{filters: flagFilters, paths: flagPaths, images: imageNums}

	paths, err := gatherPaths(args, flagRecurse)
	if err != nil {
		return err
	}

	stats := tbd.NewStats()
	var failed int
	for _, p := range paths {
		if err := extractPath(p, flagOutput, sel, flagList, stats); err != nil {
			fmt.Fprintln(os.Stderr, "tbd:", err)
			failed++
		}
	}

	fmt.Printf("%d written, %d failed\n", stats.Written, stats.Failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d inputs failed", failed, len(paths))
	}
	return nil
}

// gatherPaths expands args into a flat file list, descending into
// directories only when recurse is set.
func gatherPaths(args []string, recurse bool) ([]string, error) {
	var out []string
	for _, a := range args {
		info, err := os.Stat(a)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			out = append(out, a)
			continue
		}
		if !recurse {
			return nil, fmt.Errorf("%s: is a directory (pass -r to recurse)", a)
		}
		err = filepath.Walk(a, func(p string, fi os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !fi.IsDir() {
				out = append(out, p)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
