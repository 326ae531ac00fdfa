package services

import (
	"fmt"

	"sparhub/models"
)

// FallbackReply is the deterministic reply substituted when reply
// generation fails or times out. The session keeps moving; the participant
// sees a degraded answer, never an error.
func FallbackReply(cp *models.Counterpart) string {
	name := "I"
	if cp != nil && cp.DisplayName != "" {
		name = cp.DisplayName
	}
	if name == "I" {
		return "I'm sorry, I lost my train of thought there. Could you restate your point? I'd like to answer it properly."
	}
	return fmt.Sprintf("%s pauses for a moment. I'm sorry, I lost my train of thought there. Could you restate your point? I'd like to answer it properly.", name)
}

func neutralPillars() map[string]string {
	pillars := make(map[string]string, len(models.VerdictPillars))
	for _, p := range models.VerdictPillars {
		pillars[p] = "Both sides made a reasonable showing; no automated assessment is available for this session."
	}
	return pillars
}

// FallbackVerdict is substituted when verdict generation fails. Neutral
// per-pillar text, no declared loser beyond the required outcome field.
func FallbackVerdict() *models.Verdict {
	return &models.Verdict{
		ParticipantArguments: []string{"The participant presented their case across the session."},
		CounterpartArguments: []string{"The counterpart responded with counter-arguments throughout."},
		ContestedPoints:      []models.ContestedPoint{},
		Conclusion: models.Conclusion{
			Outcome:   models.SideParticipant,
			Pillars:   neutralPillars(),
			Reasoning: "The automated analysis was unavailable when this session completed. A fresh verdict can be requested at any time.",
			Recommendations: []string{
				"Regenerate the verdict to get a full analysis of this exchange.",
			},
		},
	}
}

// TimeoutVerdict is the synthetic verdict the reaper attaches when it
// force-completes an idle session. Built without the generator.
func TimeoutVerdict() *models.Verdict {
	v := FallbackVerdict()
	v.Conclusion.Reasoning = "This session timed out due to inactivity and was closed automatically."
	v.Conclusion.Recommendations = []string{
		"Start a new session to continue the exchange.",
		"Regenerate the verdict for a full analysis of what was said so far.",
	}
	return v
}
