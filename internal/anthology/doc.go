// Package anthology implements the proceedings discovery and email
// extraction pipeline: index discovery, URL classification, paper listing
// traversal, and PDF email extraction.
package anthology
