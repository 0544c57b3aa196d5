// Package storage writes photos into the output directory.
//
// File names are derived from the post id and the photo position so that a
// second run finds the same names and can skip them:
//
//	12345_max.jpg      single-photo post
//	12345_0_max.jpg    first photo of a multi-photo post
//
// Writes go through a temporary file followed by a rename. After writing,
// the file modification time can be set to the post date.
package storage
