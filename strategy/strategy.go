// Package strategy contains the built-in scoring strategies and the registry
// that maps declared evaluation types to their constructors. Every strategy
// implements the two-phase api.Evaluation contract: GetResult captures model
// output, Evaluate turns it into a score in [0, 100].
package strategy

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/datar-psa/evalharness/api"
	"github.com/datar-psa/evalharness/llm"
	"github.com/datar-psa/evalharness/retry"
)

// Strategy type identifiers, as declared in evaluation instance files.
const (
	TypeContainsPattern  = "contains_pattern"
	TypeStructuredOutput = "structured_output"
	TypeMeetsCriteria    = "meets_criteria"
	TypeMultipleChoice   = "multiple_choice"
)

// callTimeout bounds a single transport attempt. The attempt runs on a
// detached context so that cancelling a run never aborts a call mid-flight.
const callTimeout = 2 * time.Minute

// Judge identifies the secondary model used to adjudicate semantic criteria.
type Judge struct {
	Provider string
	Model    string
}

// Env carries the collaborators a strategy needs: the provider router, the
// judge model identity, and the retry policy for model calls.
type Env struct {
	Clients *llm.Router
	Judge   Judge
	Retry   retry.Policy
}

// DefaultEnv returns an Env with the standard retry policy wired to the
// transport's transient classification.
func DefaultEnv(clients *llm.Router) Env {
	return Env{
		Clients: clients,
		Retry:   retry.DefaultPolicy(llm.IsTransient),
	}
}

// callModel invokes a model through the router under the retry policy.
// Transient failures are retried with backoff; exhausting the budget or
// hitting a permanent failure surfaces an *api.ModelCallError.
func callModel(ctx context.Context, env Env, provider string, req llm.Request) (*llm.Response, error) {
	client, err := env.Clients.Client(provider)
	if err != nil {
		return nil, &api.ModelCallError{Provider: provider, Model: req.Model, Attempts: 0, Err: err}
	}

	var resp *llm.Response
	res, err := retry.Do(ctx, env.Retry, func(ctx context.Context, attempt int) error {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), callTimeout)
		defer cancel()
		r, callErr := client.Complete(callCtx, req)
		if callErr != nil {
			return callErr
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, &api.ModelCallError{
			Provider:  provider,
			Model:     req.Model,
			Attempts:  res.Attempts,
			Transient: llm.IsTransient(err),
			Err:       err,
		}
	}
	return resp, nil
}

var thinkingRegex = regexp.MustCompile(`(?s)<think(?:ing)?>.*?</think(?:ing)?>`)

// stripThinking removes chain-of-thought blocks reasoning models wrap in
// <think> tags, so scoring only sees the final answer.
func stripThinking(s string) string {
	return strings.TrimSpace(thinkingRegex.ReplaceAllString(s, ""))
}

func ptr[T any](v T) *T { return &v }
