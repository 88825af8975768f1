// Package storyarchive reads crawler story archives: gzip files (possibly several
// gzip members back to back) holding one JSON story per line
//
// Design choices:
// - Stream with bufio.Scanner capped at 32MB per line.
// - A line may hold several concatenated objects (`}{`), each decoded in turn.
// - Undecodable lines are skipped and counted, never fatal.
// - Inputs are local files (glob) or http(s) URLs, optionally cached on disk.
package storyarchive
