// Package orchestrator implements the single-threaded iteration state
// machine of SPEC_FULL §4.7: analyze→plan→execute↔review→complete, with
// budget checks, checkpoint cadence, and cooperative cancellation. It is
// grounded on the reference repository's
// internal/domain/agent/react/{runtime.go,engine.go}: the
// think→planTools→executeTools→observeTools→saveCheckpoint→finish cycle
// and checkpointing pending tool state before execution are kept; the
// reference's sync.Once-guarded finalization is not carried over, and the
// product-specific concerns out of this spec's
// scope (Lark notifications, background subagent delegation, plan/clarify
// UI gating, the steward/meta-agent state machine) are dropped.
package orchestrator

import (
	"time"

	"agentcore/internal/checkpoint"
	"agentcore/internal/core"
)

// Step is the session's coarse workflow state, aliasing
// checkpoint.WorkflowStep so callers never need to convert between the two.
type Step = checkpoint.WorkflowStep

const (
	StepAnalyze  = checkpoint.StepAnalyze
	StepPlan     = checkpoint.StepPlan
	StepExecute  = checkpoint.StepExecute
	StepReview   = checkpoint.StepReview
	StepComplete = checkpoint.StepComplete
	StepError    = checkpoint.StepError
	StepPaused   = checkpoint.StepPaused
)

// State is the loop's in-memory working set for one session: the live
// conversation, iteration counter, and workflow step. It mirrors
// checkpoint.{AgentState,Conversation,CheckpointMetadata} but in the loop's
// own in-process shape rather than the checkpoint store's durable one;
// Loop translates between the two at each checkpoint cadence per
// SPEC_FULL §4.2.
type State struct {
	ProjectHash string
	SessionID   string

	Messages  []core.Message
	Iteration int
	Step      Step
	Mode      string

	// PendingTools holds the calls of the iteration currently executing,
	// saved ahead of tool dispatch so a crash mid-execution leaves a
	// checkpoint recording intent (SPEC_FULL §4.7 step 5's "checkpoint
	// pending tool state before execution").
	PendingTools []core.ToolCall

	TokenCount int

	// checkpointID is the id of the checkpoint saved so far for the current
	// iteration, if any. A pre-dispatch save and the end-of-iteration save
	// reuse this id so one iteration never produces two index entries;
	// Step resets it to "" when Iteration advances.
	checkpointID string
}

// Result is what Run/Step return on reaching a terminal step.
type Result struct {
	Step       Step
	Iterations int
	Duration   time.Duration
	Err        error
}
