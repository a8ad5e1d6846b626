// Package caps lists the well-known capability URIs.
//
// Capabilities are opaque strings everywhere else in this repository.
// Callers may define their own namespaces; nothing rejects an unknown URI.
package caps

const (
	Messaging    = "wascc:messaging"
	KeyValue     = "wascc:keyvalue"
	HTTPServer   = "wascc:http_server"
	HTTPClient   = "wascc:http_client"
	BlobStore    = "wascc:blobstore"
	EventStreams = "wascc:eventstreams"
	Extras       = "wascc:extras"
	Logging      = "wascc:logging"
)

var friendlyNames = map[string]string{
	Messaging:    "Messaging",
	KeyValue:     "K/V Store",
	HTTPServer:   "HTTP Server",
	HTTPClient:   "HTTP Client",
	BlobStore:    "Blob Store",
	EventStreams: "Event Streams",
	Extras:       "Extras",
	Logging:      "Logging",
}

// WellKnown returns the well-known capability URIs in a stable order.
func WellKnown() []string {
	return []string{Messaging, KeyValue, HTTPServer, HTTPClient, BlobStore, EventStreams, Extras, Logging}
}

// Describe returns a friendly name for uri, or uri itself when it is not
// well known.
func Describe(uri string) string {
	if name, ok := friendlyNames[uri]; ok {
		return name
	}
	return uri
}

// IsWellKnown reports whether uri is one of the constants in this package.
func IsWellKnown(uri string) bool {
	_, ok := friendlyNames[uri]
	return ok
}
