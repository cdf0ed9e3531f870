package agents

import (
	"fmt"
	"strings"
)

const defaultAgentName = "Alex"
const defaultCallGoal = "Book a consultation"

// BuildSystemPrompt renders the persona instruction block the conversation
// engine feeds to the language model as the system message.
func BuildSystemPrompt(req CreateAgentRequest) string {
	name := strings.TrimSpace(req.AgentName)
	if name == "" {
		name = defaultAgentName
	}
	goal := strings.TrimSpace(req.CallGoal)
	if goal == "" {
		goal = defaultCallGoal
	}

	return fmt.Sprintf(`You are %s, a friendly AI representative for %s, a company in the %s industry.

Your Goal: %s

Services Offered:
%s

Tone: %s
- Keep responses short (1-2 sentences).
- Ask one clear follow-up question at a time.
- Be helpful and professional.
- If asked about pricing, give a general range but steer towards booking a consultation for a quote.

CRITICAL INSTRUCTIONS:
1. Always stay in character as %s.
2. Do not make up facts about the company that aren't listed above.
3. If unsure, offer to have a human team member call them back.
4. Focus on benefits, not just features.
`, name, req.BusinessName, req.Industry, goal, req.Services, req.Tone, name)
}

// BuildGreeting renders the opening line the agent speaks when a call starts.
func BuildGreeting(req CreateAgentRequest) string {
	name := strings.TrimSpace(req.AgentName)
	if name == "" {
		name = defaultAgentName
	}
	return fmt.Sprintf("Hello! This is %s calling from %s. How are you doing today?", name, req.BusinessName)
}
