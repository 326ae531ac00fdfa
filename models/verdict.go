package models

// Verdict is the structured multi-pillar evaluation produced when a session
// completes. Field shapes match the strict JSON the generator is prompted
// to emit, so the same struct decodes model output and persists to Mongo.
type Verdict struct {
	ParticipantArguments []string          `json:"participantArguments" bson:"participantArguments"`
	CounterpartArguments []string          `json:"counterpartArguments" bson:"counterpartArguments"`
	ContestedPoints      []ContestedPoint  `json:"contestedPoints" bson:"contestedPoints"`
	ParticipantImpact    StakeholderImpact `json:"participantImpact" bson:"participantImpact"`
	CounterpartImpact    StakeholderImpact `json:"counterpartImpact" bson:"counterpartImpact"`
	ParticipantOutcomes  ConsequenceSet    `json:"participantOutcomes" bson:"participantOutcomes"`
	CounterpartOutcomes  ConsequenceSet    `json:"counterpartOutcomes" bson:"counterpartOutcomes"`
	Conclusion           Conclusion        `json:"conclusion" bson:"conclusion"`
}

// ContestedPoint is a point of disagreement with both positions captured.
type ContestedPoint struct {
	Point               string `json:"point" bson:"point"`
	ParticipantPosition string `json:"participantPosition" bson:"participantPosition"`
	CounterpartPosition string `json:"counterpartPosition" bson:"counterpartPosition"`
}

// StakeholderImpact names the groups a side's position helps or harms.
type StakeholderImpact struct {
	Benefited     []string `json:"benefited" bson:"benefited"`
	Disadvantaged []string `json:"disadvantaged" bson:"disadvantaged"`
}

// ConsequenceSet lists the likely consequences of adopting a side's position.
type ConsequenceSet struct {
	Positive []string `json:"positive" bson:"positive"`
	Negative []string `json:"negative" bson:"negative"`
}

// Pillar names used in Conclusion.Pillars. Kept as a fixed set so every
// verdict is comparable.
var VerdictPillars = []string{"clarity", "evidence", "logic", "responsiveness"}

// Conclusion declares the outcome along with a qualitative per-pillar read.
type Conclusion struct {
	Outcome         string            `json:"outcome" bson:"outcome"` // SideParticipant or SideCounterpart
	Pillars         map[string]string `json:"pillars" bson:"pillars"`
	Reasoning       string            `json:"reasoning" bson:"reasoning"`
	Recommendations []string          `json:"recommendations" bson:"recommendations"`
}
