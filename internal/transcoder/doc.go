// Package transcoder runs ffmpeg.
//
// [Transcoder.Transcode] is the one place a process is started for
// composition and preview jobs. It provides:
//   - Bounded admission: a counting semaphore sized by TRANSCODE_WORKERS
//   - Atomic publishing: output is written to a hidden temp file and renamed
//     on a clean exit
//   - Process tracking so [Transcoder.Cleanup] can kill everything on shutdown
//   - Captured stderr, returned as the error diagnostic
//
// [Transcoder.Downscale] produces the 320p preview shown by the editor.
package transcoder
