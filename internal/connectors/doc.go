// Package connectors provides implementations of the Connector interface
// for document sources. Each connector knows how to list raw documents
// from a specific source type.
package connectors
