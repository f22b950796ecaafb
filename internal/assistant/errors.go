package assistant

import "errors"

// Sentinel errors for dialogue orchestration.
// Only errors checked with errors.Is() are defined here.
var (
	// ErrToolExecution indicates a tool invoked by the model failed.
	ErrToolExecution = errors.New("tool execution failed")

	// ErrModelInvocation indicates the language model call itself failed.
	ErrModelInvocation = errors.New("model invocation failed")

	// ErrOrchestration indicates the dialogue flow reached an invalid
	// state, such as the model requesting an unregistered tool.
	ErrOrchestration = errors.New("orchestration failed")
)
