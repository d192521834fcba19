// Package mediatypes holds the accepted upload formats.
//
// It is dependency-free so the validator, the session store and the HTTP
// layer can share one table of extensions and content types:
//
//	ext := strings.ToLower(filepath.Ext(filename))
//	if mediatypes.GetFileType(ext) != mediatypes.FileTypeVideo {
//	    // reject
//	}
//	if !mediatypes.AcceptsContentType(mediatypes.FileTypeVideo, part.Header.Get("Content-Type")) {
//	    // reject
//	}
package mediatypes
