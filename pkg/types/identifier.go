package types

// Identifier describes, per topic, an expression document used to test or
// classify data belonging to that topic. Identifiers have no relational
// representation: they exist only in the owning topic's document
// collection, and their integrity is enforced by application convention
// rather than a foreign key.
type Identifier struct {
	ID         string `json:"id"`         // Time-ordered UUIDv7
	Expression string `json:"expression"` // Free-form expression text
}
