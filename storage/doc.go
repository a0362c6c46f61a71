// Package storage serves stored objects as streaming response bodies.
//
// A Storage backend is selected by Config.Provider; backends register
// themselves from their own packages, which must be imported for effect:
//
//	import (
//	    _ "github.com/kbukum/streamkit/storage/local"
//	    _ "github.com/kbukum/streamkit/storage/s3"
//	)
//
// Source turns an object into a pull source that opens the object on the
// first pull, so a missing or unreadable object fails before the response
// is committed.
package storage
