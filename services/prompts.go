package services

import (
	"fmt"
	"strings"

	"sparhub/models"
)

// FormatHistory converts the visible message log into a transcript the
// model can follow. The system message never appears here; persona
// instructions travel separately.
func FormatHistory(messages []models.Message) string {
	var sb strings.Builder
	for _, msg := range messages {
		switch msg.Role {
		case models.RoleUser:
			sb.WriteString(fmt.Sprintf("Participant: %s\n", msg.Content))
		case models.RoleAssistant:
			sb.WriteString(fmt.Sprintf("Counterpart: %s\n", msg.Content))
		}
	}
	return sb.String()
}

func systemInstructions(sess *models.Session) string {
	for _, m := range sess.Messages {
		if m.Role == models.RoleSystem {
			return m.Content
		}
	}
	return ""
}

func lastUserMessage(sess *models.Session) string {
	for i := len(sess.Messages) - 1; i >= 0; i-- {
		if sess.Messages[i].Role == models.RoleUser {
			return sess.Messages[i].Content
		}
	}
	return ""
}

// buildReplyPrompt assembles the counter-argument prompt: persona, topic,
// curated knowledge, transcript, and the participant's latest point.
func buildReplyPrompt(sess *models.Session, cp *models.Counterpart, knowledge string) string {
	topic := sess.Topic
	if topic == "" {
		topic = "the participant's chosen subject"
	}

	persona := systemInstructions(sess)
	if persona == "" {
		persona = cp.Persona
	}

	extraContext := ""
	if knowledge != "" {
		extraContext = fmt.Sprintf("Reference material you may draw on:\n%s\n", knowledge)
	}

	userText := strings.TrimSpace(lastUserMessage(sess))
	if userText == "" {
		userText = "It appears the participant didn't say anything."
	}

	round := sess.RoundCount()
	closing := ""
	if round >= sess.MaxRounds {
		closing = "This is the final round: summarize your strongest points and close persuasively."
	}

	return fmt.Sprintf(
		`You are %s, debating a participant on the topic "%s".
Persona instructions:
%s
%s
Respond directly to the participant's latest point with one concise counter-argument of your own. Do not simulate the participant's side, do not narrate the debate, and keep your reply under 150 words. %s
Participant's latest message: "%s"
Transcript so far:
%s
Provide only your argument.`,
		cp.DisplayName, topic,
		persona,
		extraContext,
		closing,
		userText,
		FormatHistory(sess.VisibleMessages()),
	)
}

// buildVerdictPrompt asks for the multi-pillar verdict in strict JSON
// matching models.Verdict, so the response decodes straight into the
// document we persist.
func buildVerdictPrompt(sess *models.Session, cp *models.Counterpart, knowledge string) string {
	topic := sess.Topic
	if topic == "" {
		topic = "the debated subject"
	}

	extraContext := ""
	if knowledge != "" {
		extraContext = fmt.Sprintf("Reference material:\n%s\n", knowledge)
	}

	return fmt.Sprintf(
		`Act as an impartial debate analyst. The participant debated %s on the topic "%s".
%s
Analyze the transcript and produce STRICT JSON with exactly this shape:
{
  "participantArguments": ["top arguments made by the participant"],
  "counterpartArguments": ["top arguments made by the counterpart"],
  "contestedPoints": [
    {"point": "text", "participantPosition": "text", "counterpartPosition": "text"}
  ],
  "participantImpact": {"benefited": ["groups"], "disadvantaged": ["groups"]},
  "counterpartImpact": {"benefited": ["groups"], "disadvantaged": ["groups"]},
  "participantOutcomes": {"positive": ["consequences"], "negative": ["consequences"]},
  "counterpartOutcomes": {"positive": ["consequences"], "negative": ["consequences"]},
  "conclusion": {
    "outcome": "participant" or "counterpart",
    "pillars": {"clarity": "text", "evidence": "text", "logic": "text", "responsiveness": "text"},
    "reasoning": "text",
    "recommendations": ["concrete suggestions for the participant"]
  }
}

Transcript:
%s

Provide ONLY the JSON output without any additional text.`,
		cp.DisplayName, topic,
		extraContext,
		FormatHistory(sess.VisibleMessages()),
	)
}
