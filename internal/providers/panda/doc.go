// Package panda implements the panda gallery provider: gallery metadata
// comes from the gdata JSON API, searches and archiver pages are scraped
// with goquery, and archives arrive either directly over HTTP or as
// torrents handed to the transfer transport.
//
// Galleries can live on the public site or on the fjord mirror, which
// requires member cookies. The canonical URL of a record uses whichever
// root the gallery was found on.
package panda
