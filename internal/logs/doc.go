// Package logs reads the shared artdedup log file for `artdedup logs`.
//
// Tail returns the last N lines with bounded memory and the byte offset the
// caller resumes from; Follow polls that offset for appended lines until the
// context ends.
package logs
