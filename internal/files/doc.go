// Package files discovers supply-chain source files on disk.
//
// The web server keeps uploads in the data directory under a fixed base
// name. On restart it resumes from the newest of them instead of falling
// back to the configured input file:
//
//	d := files.NewDiscovery(paths.DataDir)
//	if latest, ok := d.LatestSource(services.UploadBaseName); ok {
//	    // latest.Path is the active source
//	}
package files
