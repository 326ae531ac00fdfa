package models

// Counterpart is one entry in the read-only counterpart catalog.
type Counterpart struct {
	ID          string `json:"id" bson:"_id"`
	DisplayName string `json:"displayName" bson:"displayName"`
	ShortLabel  string `json:"shortLabel" bson:"shortLabel"`
	AccentColor string `json:"accentColor" bson:"accentColor"`
	Description string `json:"description" bson:"description"`
	// Persona holds the system instructions seeded into every session with
	// this counterpart. Never exposed through the catalog API.
	Persona string `json:"-" bson:"persona"`
	// Welcome is the canned first assistant message for a new session.
	Welcome string `json:"-" bson:"welcome"`
}

// CuratedKnowledge is per-counterpart reference text maintained by a
// separate admin surface and supplied to the generator as extra context.
type CuratedKnowledge struct {
	CounterpartID string `bson:"counterpartId"`
	Title         string `bson:"title"`
	Content       string `bson:"content"`
}
