// Package storage abstracts the directory layout used by the pipeline. All
// paths exchanged through Store are slash-separated and relative to the
// configured root; the audio root holds inbox/, processing/, failed/, and
// processed/ trees.
package storage
