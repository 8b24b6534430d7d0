// Package sender drives whole files through recognition sessions: many files
// in parallel, one file paced like live capture, or several files in turn on
// one connection.
package sender
