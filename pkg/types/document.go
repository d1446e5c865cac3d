package types

import "time"

// Document is a raw record in the document store: an opaque JSON body
// addressed by (collection key, document id). The document store has no
// independent notion of existence — a document whose collection key no
// longer resolves to a metadata row is an orphan awaiting reconciliation.
type Document struct {
	ID      string                 `json:"id"`
	Body    map[string]interface{} `json:"body"`
	Created time.Time              `json:"created"`
	Updated *time.Time             `json:"updated,omitempty"`
}
