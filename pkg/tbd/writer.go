package tbd

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// tbdVersion is the document-tag version this writer emits; downstream TBD
// readers switch decoding behavior on it.
const tbdVersion = "1.0"

// document is the on-disk shape of a TBD file: one YAML mapping led by a
// tbd-version key. No `---` marker or document tag is written.
type document struct {
	TBDVersion string `yaml:"tbd-version"`
	*Descriptor `yaml:",inline"`
}

// WriteTo serializes d as YAML to w.
func WriteTo(w io.Writer, d *Descriptor) error {
	doc := document{TBDVersion: tbdVersion, Descriptor: d}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer enc.Close()
	if err := enc.Encode(&doc); err != nil {
		return fmt.Errorf("tbd: encode: %w", err)
	}
	return nil
}
