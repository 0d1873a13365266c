// Package normalisers provides implementations of the Normaliser interface
// for document formats. Each normaliser knows how to turn a raw file of a
// specific MIME type into a Document ready for chunking.
package normalisers
