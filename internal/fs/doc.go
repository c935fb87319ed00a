// Package fs abstracts the filesystem operations used to write index images.
//
// [LocalFS] is the production implementation. [FaultyFS] wraps another
// [FileSystem] and injects write, sync, close and rename failures so tests can
// check that a failed save never leaves a partial image under its final name.
//
// The interface carries no context.Context: local file operations are not
// interruptible at the syscall level. Object storage goes through blobstore.
package fs
