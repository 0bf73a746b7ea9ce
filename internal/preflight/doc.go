// Package preflight provides readiness checks for the directories, disk
// space and transports galleryvault depends on.
//
// These checks run in two contexts:
//   - The download pipeline calls CheckFreeSpace before each archive so a
//     full disk stops the chain instead of producing truncated files.
//   - The daemon and the CLI "galleryvault status" path call RunAll to
//     display directory and transport health.
//
// Disabled transports are skipped.
package preflight
