// Package agent exposes the general-purpose task runtime consumed by
// the dispatcher for tasks that are neither navigation nor extraction.
package agent

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/webpilot/backend/internal/ai"
	"github.com/webpilot/backend/internal/fetch"
	"github.com/webpilot/backend/internal/logging"
	"github.com/webpilot/backend/internal/types"
)

// Item is one element of a task stream. Either Event is valid or Err is
// set; an Err item is always the last one before the channel closes.
type Item struct {
	Event types.Event
	Err   error
}

// Runtime runs a free-text task and pushes resulting events. The
// returned channel is closed by the producer after at most one Err item;
// a close without an Err item signals successful completion.
type Runtime interface {
	RunTask(ctx context.Context, task, model string) (<-chan Item, error)
}

const agentSystemPrompt = "You are a helpful browsing assistant. Answer " +
	"the user's request directly and concisely."

// OpenAIRuntime delegates tasks to the chat-completion endpoint.
type OpenAIRuntime struct {
	cfg    ai.Config
	client *fetch.Client
	logger *logging.Logger
}

// NewOpenAIRuntime constructs the runtime. A missing API key is a hard
// error: without it the delegation path cannot work at all, and startup
// must abort.
func NewOpenAIRuntime(cfg ai.Config, client *fetch.Client, logger *logging.Logger) (*OpenAIRuntime, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}
	return &OpenAIRuntime{
		cfg:    cfg,
		client: client,
		logger: logger,
	}, nil
}

// RunTask starts the task and returns its event stream.
func (r *OpenAIRuntime) RunTask(ctx context.Context, task, model string) (<-chan Item, error) {
	if task == "" {
		return nil, fmt.Errorf("empty task")
	}

	cfg := r.cfg
	if model != "" {
		cfg.Model = model
	}

	out := make(chan Item, 1)
	go func() {
		defer close(out)

		content, err := ai.Complete(ctx, r.client, cfg, []ai.Message{
			{Role: "system", Content: agentSystemPrompt},
			{Role: "user", Content: task},
		})
		if err != nil {
			r.logger.Error("agent task failed", zap.Error(err))
			out <- Item{Err: err}
			return
		}
		out <- Item{Event: types.Assistant(content)}
	}()
	return out, nil
}
