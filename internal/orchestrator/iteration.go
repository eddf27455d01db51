package orchestrator

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"agentcore/internal/agenterrors"
	"agentcore/internal/checkpoint"
	"agentcore/internal/core"
	"agentcore/internal/toolcall"
)

const syntheticNudgeText = "Please continue: provide your final answer, or call a tool to make further progress."

// Step runs exactly one iteration of spec.md §4.7's per-iteration
// algorithm, grounded on the reference repository's
// reactRuntime.runIteration() (think→planTools→executeTools→
// observeTools→saveCheckpoint→finish). It returns (result, true, err) on
// reaching a terminal step (complete|error|paused); otherwise (nil, false,
// nil) and the caller should call Step again for the next iteration.
func (l *Loop) Step(ctx context.Context, state *State) (*Result, bool, error) {
	result, done, err := l.step(ctx, state)
	if done && result != nil {
		l.metrics.iteration(string(result.Step))
	}
	return result, done, err
}

func (l *Loop) step(ctx context.Context, state *State) (*Result, bool, error) {
	// Step 1: budget check.
	if state.Iteration >= l.cfg.MaxIterations {
		state.Step = StepError
		if err := l.maybeCheckpoint(state, true); err != nil {
			return nil, true, err
		}
		return &Result{Step: StepError, Iterations: state.Iteration, Err: ErrMaxIterationsExceeded}, true, ErrMaxIterationsExceeded
	}
	if result, done, err := l.checkCancellation(ctx, state); done {
		return result, done, err
	}

	tokens := l.format.estimateTokens(state.Messages)
	state.TokenCount = tokens
	if l.cfg.MaxTokens > 0 && tokens > l.cfg.MaxTokens {
		state.Messages = trim(state.Messages, l.cfg.MaxHistory)
	}

	// Step 8 (of the prior iteration) / loop entry for this one: the
	// counter is incremented before running the body, so the budget check
	// above compares the number of iterations already completed against
	// MaxIterations.
	state.Iteration++
	state.checkpointID = ""
	l.logger.Info("orchestrator iteration %d/%d", state.Iteration, l.cfg.MaxIterations)

	spanCtx, span := startIterationSpan(ctx, state, attribute.Int("agentcore.message_count", len(state.Messages)))
	ctx = spanCtx
	var stepErr error
	defer func() {
		markSpanResult(span, stepErr)
		span.End()
	}()

	// Step 2: prompt assembly.
	genCfg := core.GenerateConfig{
		Model:       l.cfg.Model,
		Temperature: l.cfg.Temperature,
		Tools:       l.tools.List(),
		ToolChoice:  core.ToolChoice{Policy: "auto"},
	}

	// Step 3: generate, retried on Transport failures only.
	var result core.GenerateResult
	genErr := agenterrors.Retry(ctx, agenterrors.RetryConfig{MaxRetries: l.cfg.MaxRetries, Backoff: l.cfg.RetryBackoff}, func(ctx context.Context) error {
		r, err := l.provider.Generate(ctx, state.Messages, genCfg)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if genErr != nil {
		r, done, err := l.handleGenerateFailure(state, genErr)
		stepErr = err
		return r, done, err
	}

	// Step 4: record assistant turn. The tool-call parser also scans the
	// raw content for embedded JSON/shorthand calls and completion
	// markers (spec.md §4.6); provider-structured calls take precedence
	// when both are present.
	parsed := toolcall.Parse(result.Content)
	calls := result.ToolCalls
	if len(calls) == 0 {
		calls = parsed.Calls
	}

	assistantMsg := buildAssistantMessage(result.Content, calls)
	state.Messages = append(state.Messages, assistantMsg)
	if err := l.appendEvent(state, checkpoint.EventMessage, assistantMsg); err != nil {
		stepErr = err
		return nil, true, err
	}

	if result, done, err := l.checkCancellation(ctx, state); done {
		stepErr = err
		return result, done, err
	}

	// Step 5: tool dispatch, in call order.
	if len(calls) > 0 {
		state.PendingTools = calls
		if err := l.saveCheckpoint(state); err != nil {
			stepErr = err
			return nil, true, err
		}

		cancelled, err := l.dispatchTools(ctx, state, calls)
		state.PendingTools = nil
		if err != nil {
			stepErr = err
			return nil, true, err
		}
		if cancelled {
			r, done, pauseErr := l.pauseResult(state)
			stepErr = pauseErr
			return r, done, pauseErr
		}
	}

	// Step 6: completion check.
	if parsed.Completed {
		state.Step = StepComplete
		if err := l.maybeCheckpoint(state, true); err != nil {
			stepErr = err
			return nil, true, err
		}
		return &Result{Step: StepComplete, Iterations: state.Iteration}, true, nil
	}
	if len(calls) == 0 && result.Content != "" && l.cfg.EnableSyntheticNudge {
		nudge := core.Message{Role: core.RoleUser, Text: syntheticNudgeText}
		state.Messages = append(state.Messages, nudge)
		if err := l.appendEvent(state, checkpoint.EventMessage, nudge); err != nil {
			stepErr = err
			return nil, true, err
		}
	}

	// Step 7: checkpoint cadence.
	if err := l.maybeCheckpoint(state, false); err != nil {
		stepErr = err
		return nil, true, err
	}

	return nil, false, nil
}

func (l *Loop) checkCancellation(ctx context.Context, state *State) (*Result, bool, error) {
	if ctx.Err() == nil {
		return nil, false, nil
	}
	return l.pauseResult(state)
}

// pauseResult transitions state to paused and writes a checkpoint,
// per spec.md §4.7's cancellation semantics: "writes a checkpoint with
// step paused, and returns."
func (l *Loop) pauseResult(state *State) (*Result, bool, error) {
	state.Step = StepPaused
	if err := l.maybeCheckpoint(state, true); err != nil {
		return nil, true, err
	}
	return &Result{Step: StepPaused, Iterations: state.Iteration}, true, nil
}

// handleGenerateFailure applies spec.md §7's per-kind failure policy to a
// Generate error that survived retry: Cancellation pauses the session;
// Protocol (malformed model output, incompatible extension response) is
// surfaced to the model as a synthetic message and advances the loop;
// every other kind (Transport after retry exhaustion, Resource, Logical,
// Budget, Unknown) is fatal for the iteration.
func (l *Loop) handleGenerateFailure(state *State, err error) (*Result, bool, error) {
	switch agenterrors.KindOf(err) {
	case agenterrors.KindCancellation:
		return l.pauseResult(state)

	case agenterrors.KindProtocol:
		notice := core.Message{Role: core.RoleUser, Text: malformedOutputNotice(err)}
		state.Messages = append(state.Messages, notice)
		if evErr := l.appendEvent(state, checkpoint.EventError, err.Error()); evErr != nil {
			return nil, true, evErr
		}
		if evErr := l.appendEvent(state, checkpoint.EventMessage, notice); evErr != nil {
			return nil, true, evErr
		}
		if cpErr := l.maybeCheckpoint(state, false); cpErr != nil {
			return nil, true, cpErr
		}
		return nil, false, nil

	default:
		state.Step = StepError
		if evErr := l.appendEvent(state, checkpoint.EventError, err.Error()); evErr != nil {
			return nil, true, evErr
		}
		if cpErr := l.maybeCheckpoint(state, true); cpErr != nil {
			return nil, true, cpErr
		}
		return &Result{Step: StepError, Iterations: state.Iteration, Err: err}, true, err
	}
}

// dispatchTools executes calls in order, appending a tool_call then
// tool_result event per call. A dispatch failure is surfaced as an error
// tool result and never aborts the batch. Once a call completes, if ctx
// has since been cancelled the remaining calls in the batch are skipped
// (the in-flight call is always allowed to finish) and cancelled is
// reported so the caller transitions to paused.
func (l *Loop) dispatchTools(ctx context.Context, state *State, calls []core.ToolCall) (cancelled bool, err error) {
	for _, call := range calls {
		if evErr := l.appendEvent(state, checkpoint.EventToolCall, call); evErr != nil {
			return false, evErr
		}

		content, dispatchErr := l.dispatcher.Dispatch(call)
		resultMsg := buildToolResultMessage(call, content, dispatchErr)
		state.Messages = append(state.Messages, resultMsg)
		if evErr := l.appendEvent(state, checkpoint.EventToolResult, resultMsg); evErr != nil {
			return false, evErr
		}
		if dispatchErr != nil {
			l.logger.Warn("tool %q failed: %v", call.Name, dispatchErr)
			l.metrics.toolError(call.Name, toolSourceLabel(l.tools, call.Name))
		}

		if ctx.Err() != nil {
			return true, nil
		}
	}
	return false, nil
}

// toolSourceLabel resolves the InvokerSource label for the ToolErrors
// metric; an unregistered tool (dispatch already reports KindLogical for
// that case) labels as "unknown" rather than panicking on a missing entry.
func toolSourceLabel(tools ToolSource, name string) string {
	def, ok := tools.Find(name)
	if !ok {
		return "unknown"
	}
	return string(def.Source)
}

func buildAssistantMessage(content string, calls []core.ToolCall) core.Message {
	msg := core.Message{Role: core.RoleAssistant, Text: content}
	for _, c := range calls {
		msg.Blocks = append(msg.Blocks, core.ContentBlock{
			Kind:      core.BlockToolUse,
			ToolUseID: c.ID,
			ToolName:  c.Name,
			ToolInput: c.Arguments,
		})
	}
	return msg
}

func buildToolResultMessage(call core.ToolCall, content string, dispatchErr error) core.Message {
	text := content
	isError := dispatchErr != nil
	if isError {
		text = dispatchErr.Error()
	}
	return core.Message{
		Role:       core.RoleTool,
		ToolCallID: call.ID,
		ToolName:   call.Name,
		Blocks: []core.ContentBlock{{
			Kind:            core.BlockToolResult,
			ToolResultForID: call.ID,
			ToolResultText:  text,
			IsError:         isError,
		}},
	}
}

func malformedOutputNotice(err error) string {
	return fmt.Sprintf("<error>\nThe previous response could not be processed: %v\nPlease provide a well-formed response.\n</error>", err)
}
