package agents

import "errors"

var (
	// ErrAgentNotFound is returned when an agent is missing or owned by
	// someone else. The two cases are deliberately indistinguishable.
	ErrAgentNotFound = errors.New("agent not found")

	// ErrMissingBusinessName is returned when the persona has no business name
	ErrMissingBusinessName = errors.New("business_name is required")
)
