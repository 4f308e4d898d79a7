package store

import "fmt"

// Key layout. Events are stored under a zero-padded sequence number so a
// plain prefix scan yields insertion order; the document index maps each
// event back to its section for O(1) read-state lookups.
const (
	// eventPrefix + 20-digit sequence -> ReadingEvent JSON
	eventPrefix = "revt:"

	// eventByDocPrefix + hex path length + ":" + documentPath + ":" +
	// eventID -> sectionID. Deliberately outside the eventPrefix
	// namespace so event scans never see index entries.
	eventByDocPrefix = "ridx:doc:"

	// eventSeqKey holds the badger sequence backing event ordering.
	eventSeqKey = "seq:revt"
)

// eventKey builds the primary key for an event sequence number.
func eventKey(seq uint64) []byte {
	return fmt.Appendf(nil, "%s%020d", eventPrefix, seq)
}

// docIndexKey builds the document index key for an event. Document
// paths are opaque and may contain any byte, so the path is length
// prefixed; one document's scan prefix can never extend into another
// document's entries.
func docIndexKey(documentPath, eventID string) []byte {
	return fmt.Appendf(nil, "%s%04x:%s:%s", eventByDocPrefix, len(documentPath), documentPath, eventID)
}

// docIndexPrefix is the scan prefix for all events of a document.
func docIndexPrefix(documentPath string) []byte {
	return fmt.Appendf(nil, "%s%04x:%s:", eventByDocPrefix, len(documentPath), documentPath)
}
