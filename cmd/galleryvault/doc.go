// Command galleryvault crawls gallery providers, matches local archives
// against them and keeps the resulting catalog consistent.
//
// Most commands build the runtime in-process and exit when done. The daemon
// command runs the long-lived process; `daemon status`, `daemon jobs`,
// `daemon run` and `crawl --daemon` talk to it over its HTTP API.
package main
