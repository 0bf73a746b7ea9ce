// Package gallery defines the provider-neutral metadata record that flows from
// parsers and matchers through the download pipeline into the catalog.
//
// A Record is identified by its (GID, Provider) pair. Records are passed by
// value; once handed to the catalog only the post-download fields (Filename,
// Filesize, Filecount) are attached. Tag helpers understand the "scope:value"
// convention used by every provider and treat bare tags as unscoped.
package gallery
