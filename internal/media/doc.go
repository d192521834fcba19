// Package media reads still-image metadata for uploaded backgrounds and
// overlays.
//
// [InspectImage] prefers libvips (see [InitVips]) and otherwise decodes the
// image header with the standard library and x/image decoders. JPEG and TIFF
// files are opened with EXIF auto-orientation so a rotated phone photo
// reports its displayed, not stored, dimensions.
package media
