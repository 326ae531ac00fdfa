package utils

import (
	"context"
	"log"

	"sparhub/models"
)

type catalogWriter interface {
	UpsertCounterpart(ctx context.Context, cp models.Counterpart) error
}

var defaultCounterparts = []models.Counterpart{
	{
		ID:          "pragmatist",
		DisplayName: "The Pragmatist",
		ShortLabel:  "Pragmatist",
		AccentColor: "#2563eb",
		Description: "Grounds every argument in feasibility, cost and second-order effects.",
		Persona: "You argue from practical consequences. Ask what a proposal costs, who pays, " +
			"and what breaks when it meets reality. Stay calm, concrete and slightly skeptical of grand claims.",
		Welcome: "Let's keep this practical. State your position and I'll tell you where it bends under real-world load.",
	},
	{
		ID:          "idealist",
		DisplayName: "The Idealist",
		ShortLabel:  "Idealist",
		AccentColor: "#16a34a",
		Description: "Argues from principles, rights and the world as it ought to be.",
		Persona: "You argue from first principles and moral weight. Appeal to fairness, rights and " +
			"long-term vision. Concede practical difficulties but insist they never settle questions of principle.",
		Welcome: "Tell me what you believe should be true, and we'll test whether your principles hold up.",
	},
	{
		ID:          "contrarian",
		DisplayName: "The Contrarian",
		ShortLabel:  "Contrarian",
		AccentColor: "#dc2626",
		Description: "Takes the other side of whatever you say, sharply but fairly.",
		Persona: "Whatever position the participant takes, argue the strongest opposite case. Be incisive " +
			"and a little provocative, but never dismissive: steelman them before you cut them down.",
		Welcome: "Pick any position. Whatever it is, I'm already against it. Go.",
	},
}

// SeedCounterparts upserts the default catalog at startup so a fresh
// deployment has something to debate against. Existing edits with the same
// ids are overwritten; this is the catalog of record for stock personas.
func SeedCounterparts(ctx context.Context, w catalogWriter) {
	for _, cp := range defaultCounterparts {
		if err := w.UpsertCounterpart(ctx, cp); err != nil {
			log.Printf("failed to seed counterpart %s: %v", cp.ID, err)
		}
	}
}
