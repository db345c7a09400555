// Package rpak supports the decompression and compression of RPak asset
// containers.
//
// A pak starts with a file header of HeaderLen bytes. The payload of a
// compressed pak follows the header either as an RTech stream, which is
// implemented by package rtech, or as a zstd frame. Decompress and Compress
// work on complete files in memory. A Reader decompresses a pak from an
// io.Reader using ring buffers of bounded size.
//
// Patch paks list the paks they patch after the file header. PatchHeaders
// reads this list and UpdatePatchSizes fixes the sizes recorded for the
// patched paks after they have been rewritten.
package rpak
