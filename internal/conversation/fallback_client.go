package conversation

import (
	"context"

	"github.com/digitallabhq/voiceagent-platform/pkg/logging"
)

// FallbackClient wraps a primary LLM client with a secondary provider.
// If the primary fails, the request is retried once against the fallback.
type FallbackClient struct {
	primary  LLMClient
	fallback LLMClient
	logger   *logging.Logger
}

// NewFallbackClient creates a fallback-enabled LLM client. A nil fallback
// leaves only the primary in play.
func NewFallbackClient(primary, fallback LLMClient, logger *logging.Logger) *FallbackClient {
	if primary == nil {
		panic("conversation: primary llm client required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &FallbackClient{primary: primary, fallback: fallback, logger: logger}
}

// Complete tries the primary backend, then the fallback.
func (c *FallbackClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	resp, err := c.primary.Complete(ctx, req)
	if err == nil {
		return resp, nil
	}

	c.logger.Warn("primary llm failed",
		"error", err,
		"fallback_available", c.fallback != nil,
	)
	if c.fallback == nil {
		return LLMResponse{}, err
	}

	fbResp, fbErr := c.fallback.Complete(ctx, req)
	if fbErr != nil {
		c.logger.Error("fallback llm also failed",
			"primary_error", err,
			"fallback_error", fbErr,
		)
		return LLMResponse{}, fbErr
	}

	c.logger.Info("fallback llm succeeded after primary failure")
	return fbResp, nil
}
