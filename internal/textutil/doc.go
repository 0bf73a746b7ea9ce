// Package textutil provides text processing utilities for title matching and
// filename sanitization.
//
// The primary use cases are:
//   - Folding titles into comparison keys (NFKC, width folding, case folding)
//   - Stripping bracketed annotations to build search keys
//   - Sanitizing filenames and path segments for safe filesystem use
package textutil
