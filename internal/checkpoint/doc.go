// Package checkpoint stores the single durable resume point of the ingest
// loop: the sequence number of the last commit whose effects every feed has
// made durable.
package checkpoint
