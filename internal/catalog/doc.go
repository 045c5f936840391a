// Package catalog builds the list of known videos from the media index.
//
// Scanner reads index rows (id, display name, path, size, duration), drops
// rows whose file has disappeared, and produces Entry values with formatted
// duration and size, the container tag taken from the extension, and
// neutral codec/resolution placeholders. It never opens a file for decoding;
// technical facts are attached later with Entry.WithFacts.
package catalog
