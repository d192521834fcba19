// Package streaming bounds how long a download may take.
//
// The main HTTP server has no WriteTimeout: an upload may stream hundreds of
// megabytes and a compose request blocks until ffmpeg exits. Files served
// from the output and upload roots are wrapped in a Writer instead, which
// splits the body into chunks and gives each one its own write deadline via
// http.ResponseController. A client that stops reading loses its
// connection after WriteTimeout rather than pinning it forever.
//
//	sw := streaming.NewWriter(w, streaming.DefaultConfig())
//	defer sw.Close()
//	fileServer.ServeHTTP(sw, r)
package streaming
