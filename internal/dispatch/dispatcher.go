// Package dispatch classifies free-text tasks and orchestrates their
// execution, emitting a deterministic event sequence per task.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/webpilot/backend/internal/agent"
	"github.com/webpilot/backend/internal/extract"
	"github.com/webpilot/backend/internal/fetch"
	"github.com/webpilot/backend/internal/logging"
	"github.com/webpilot/backend/internal/monitoring"
	"github.com/webpilot/backend/internal/types"
)

// Broadcaster fans an event out to all connected clients.
type Broadcaster interface {
	Broadcast(ev types.Event)
}

// Classified actions, used as metric labels and in logs.
const (
	actionExtract  = "extract"
	actionNavigate = "navigate"
	actionAgent    = "agent"
)

// Navigation patterns, tried in order against the raw task text.
var navPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:open|visit|search|go to|navigate)\s*([a-zA-Z0-9.-]+(?:\.[a-zA-Z]{2,})?)`),
	regexp.MustCompile(`(?i)(?:open|visit)\s*(\S+)`),
}

const navigationTip = "Opening %s\n\n" +
	"Tip: After the page loads, you can say:\n" +
	"- \"extract titles\"\n" +
	"- \"extract links\"\n" +
	"- \"extract images\"\n" +
	"- \"analyze this page\""

// Dispatcher routes a task to the extraction, navigation, or agent
// delegation path. Dispatch never panics outward: every failure is
// converted to an event.
type Dispatcher struct {
	bus       Broadcaster
	fetcher   *fetch.Fetcher
	extractor *extract.Extractor
	runtime   agent.Runtime
	model     string
	logger    *logging.Logger
	metrics   *monitoring.Metrics

	rules []rule
}

// rule pairs a classification predicate with its handler. Rules are
// evaluated in order, first match wins.
type rule struct {
	action string
	match  func(task string) bool
	handle func(ctx context.Context, task string)
}

// NewDispatcher wires the dispatcher. metrics may be nil.
func NewDispatcher(
	bus Broadcaster,
	fetcher *fetch.Fetcher,
	extractor *extract.Extractor,
	runtime agent.Runtime,
	model string,
	logger *logging.Logger,
	metrics *monitoring.Metrics,
) *Dispatcher {
	d := &Dispatcher{
		bus:       bus,
		fetcher:   fetcher,
		extractor: extractor,
		runtime:   runtime,
		model:     model,
		logger:    logger,
		metrics:   metrics,
	}
	d.rules = []rule{
		{actionExtract, matchExtraction, d.handleExtraction},
		{actionNavigate, matchNavigation, d.handleNavigation},
		{actionAgent, func(string) bool { return true }, d.handleAgent},
	}
	return d
}

// Dispatch classifies and executes a single task. The acknowledgement
// message is emitted unconditionally before classification so clients
// get immediate feedback on every branch.
func (d *Dispatcher) Dispatch(ctx context.Context, task string) {
	taskID := uuid.NewString()

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("dispatch panicked",
				zap.String("task_id", taskID),
				zap.Any("panic", r))
			d.bus.Broadcast(types.Error(fmt.Sprintf("%v", r)))
		}
	}()

	d.bus.Broadcast(types.Assistant("Command received: " + task))

	for _, r := range d.rules {
		if !r.match(task) {
			continue
		}
		d.logger.Info("task classified",
			zap.String("task_id", taskID),
			zap.String("action", r.action))
		if d.metrics != nil {
			d.metrics.TasksTotal.WithLabelValues(r.action).Inc()
		}
		r.handle(ctx, task)
		return
	}
}

func matchExtraction(task string) bool {
	lower := strings.ToLower(task)
	return strings.Contains(lower, "extract") || strings.Contains(lower, "analyze page")
}

func matchNavigation(task string) bool {
	token, ok := navigationToken(task)
	return ok && token != ""
}

// navigationToken extracts the navigation target from the task text.
func navigationToken(task string) (string, bool) {
	for _, p := range navPatterns {
		if m := p.FindStringSubmatch(task); m != nil && m[1] != "" {
			return m[1], true
		}
	}
	return "", false
}

// ResolveURL turns a navigation token into an absolute URL. Tokens with
// a scheme pass through, dotted tokens get https, everything else is
// treated as an encyclopedia lookup term.
func ResolveURL(token string) string {
	if strings.HasPrefix(token, "http") {
		return token
	}
	if strings.Contains(token, ".") {
		return "https://" + token
	}
	return "https://wikipedia.org/wiki/" + url.PathEscape(token)
}

func (d *Dispatcher) handleNavigation(ctx context.Context, task string) {
	token, _ := navigationToken(task)
	target := ResolveURL(token)

	d.bus.Broadcast(types.Navigate(target))

	// Pre-fetch so a follow-up extraction has a snapshot to work with.
	// Fire-and-forget: detached from the dispatch context so a finished
	// dispatch does not cancel it, failure is logged by the fetcher and
	// never surfaced as an event.
	go func() {
		if _, err := d.fetcher.Fetch(context.WithoutCancel(ctx), target); err != nil {
			d.logger.Warn("navigation pre-fetch failed", zap.String("url", target), zap.Error(err))
		}
	}()

	d.bus.Broadcast(types.Assistant(fmt.Sprintf(navigationTip, target)))
	d.bus.Broadcast(types.Complete())
}

func (d *Dispatcher) handleExtraction(ctx context.Context, task string) {
	result, err := d.extractor.Extract(ctx, task)
	if err != nil {
		d.bus.Broadcast(types.Assistant("Extraction failed: " + err.Error()))
		d.bus.Broadcast(types.Complete())
		return
	}

	pretty, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		d.bus.Broadcast(types.Error("failed to render extraction result: " + err.Error()))
		return
	}

	d.bus.Broadcast(types.Extraction(result))
	d.bus.Broadcast(types.Assistant("Data extraction completed!\n\n" + string(pretty)))
	d.bus.Broadcast(types.Complete())
}

// handleAgent relays the runtime's event stream verbatim and guarantees
// exactly one terminal event: error if the stream errors (no complete
// follows), complete otherwise.
func (d *Dispatcher) handleAgent(ctx context.Context, task string) {
	stream, err := d.runtime.RunTask(ctx, task, d.model)
	if err != nil {
		d.bus.Broadcast(types.Error(err.Error()))
		return
	}

	for item := range stream {
		if item.Err != nil {
			d.bus.Broadcast(types.Error(item.Err.Error()))
			return
		}
		d.bus.Broadcast(item.Event)
	}
	d.bus.Broadcast(types.Complete())
}
