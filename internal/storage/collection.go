package storage

import "strings"

// Collection key prefixes. Topic collections hold identifier documents,
// set collections hold entity payload documents.
const (
	TopicCollectionPrefix = "topic_"
	SetCollectionPrefix   = "set_"
)

// CollectionKey derives the document-store collection name for a metadata
// row. The function is pure, total, and deterministic, and it is the ONLY
// way collection names are produced: both the write path and the read path
// recompute it, so lookups can never diverge from writes.
//
// The primary source is the row id (a UUID), sanitized into a valid SQL
// identifier: lowercased, with every character outside [a-z0-9] replaced
// by '_'. When the id sanitizes to nothing the row name is used instead,
// and when that is also empty the literal "unnamed" keeps the mapping
// total.
func CollectionKey(prefix, id, name string) string {
	if s := sanitizeKey(id); s != "" {
		return prefix + s
	}
	if s := sanitizeKey(name); s != "" {
		return prefix + s
	}
	return prefix + "unnamed"
}

// TopicCollectionKey derives the collection key holding a topic's
// identifier documents.
func TopicCollectionKey(id, name string) string {
	return CollectionKey(TopicCollectionPrefix, id, name)
}

// SetCollectionKey derives the collection key holding a set's entity
// payload documents.
func SetCollectionKey(id, name string) string {
	return CollectionKey(SetCollectionPrefix, id, name)
}

// sanitizeKey lowercases s and maps every character outside [a-z0-9] to
// '_'. A string with no usable characters sanitizes to "".
func sanitizeKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(s))
	usable := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			usable = true
		default:
			b.WriteByte('_')
		}
	}
	if !usable {
		return ""
	}
	return b.String()
}
