// Package assemblyai implements the transcription collaborator: audio bytes
// in, text plus word timestamps out. A transcription is three calls: upload
// the file, create a transcript job, poll the job until completed or error.
//
// Failures are classified at the boundary: vendor 5xx, rate limits, and
// network timeouts are transient; rejected or undecodable audio is permanent
// and is never retried.
package assemblyai
