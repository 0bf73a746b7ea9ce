// Package logs reads the galleryvault log file for the logs command.
//
// Tail returns the last lines of a log, or the lines appended after an offset,
// optionally waiting for new output. Filter narrows JSON log lines to one
// component, job, provider or level; console lines are matched by substring.
package logs
