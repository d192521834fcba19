// Package compositor builds the ffmpeg filter graph that places a
// horizontal video and up to two overlays on a vertical background.
//
// Everything here is pure: [Fit] computes where the video goes on the
// canvas, [Build] folds the overlay list into an ordered list of [Stage]
// values, and [Graph.FilterComplex] and [Args] serialize the result for
// the transcoder. Nothing in this package starts a process.
//
// Inputs are numbered background (0), video (1), then overlays from 2 in
// request order. The last stage is always labelled "final".
package compositor
