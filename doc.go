// Package ijtiff writes multi-dimensional microscopy images to TIFF
// files with ImageJ-compatible display metadata: per-channel look-up
// tables, display ranges, composite mode, and physical pixel size.
//
// It also flattens multi-channel stacks into RGB composites by mapping
// each channel through a LUT over its display range and summing the
// contributions, and resolves LUT identifiers (channel ramp names,
// colormap names, hex colors, RGB tuples, and .lut files) into 256-entry
// color ramps.
package ijtiff
