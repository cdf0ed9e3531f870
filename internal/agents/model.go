package agents

import (
	"strings"
	"time"
)

// Agent is a reusable voice-agent persona. Its system prompt seeds every
// conversation run against it, and its greeting becomes the first stored
// agent message of each call.
type Agent struct {
	ID           string    `json:"id"`
	UserID       string    `json:"-"`
	DisplayName  string    `json:"display_name"`
	BusinessName string    `json:"business_name"`
	Industry     string    `json:"industry"`
	Services     string    `json:"services"`
	Tone         string    `json:"tone"`
	SystemPrompt string    `json:"system_prompt"`
	Greeting     string    `json:"greeting"`
	Voice        Voice     `json:"voice"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Voice holds browser speech-synthesis preferences. The server only stores
// them; rendering happens client side.
type Voice struct {
	Gender string  `json:"gender"`
	Pitch  float64 `json:"pitch"`
	Speed  float64 `json:"speed"`
}

// Clamp normalizes voice settings to the supported ranges.
func (v *Voice) Clamp() {
	v.Gender = strings.ToLower(strings.TrimSpace(v.Gender))
	if v.Gender != "female" {
		v.Gender = "male"
	}
	if v.Pitch < -20 {
		v.Pitch = -20
	}
	if v.Pitch > 20 {
		v.Pitch = 20
	}
	if v.Speed < 0.25 {
		v.Speed = 0.25
	}
	if v.Speed > 4 {
		v.Speed = 4
	}
}

// CreateAgentRequest is the request body for creating or updating a persona.
type CreateAgentRequest struct {
	AgentName    string `json:"agent_name"`
	BusinessName string `json:"business_name"`
	Industry     string `json:"industry"`
	Services     string `json:"services"`
	Tone         string `json:"tone"`
	CallGoal     string `json:"call_goal"`
}

// Validate checks the create request fields
func (r *CreateAgentRequest) Validate() error {
	if strings.TrimSpace(r.BusinessName) == "" {
		return ErrMissingBusinessName
	}
	return nil
}
