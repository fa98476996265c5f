package core

import "errors"

// Error kinds surfaced by the library. Handler-level failures wrap one of
// these and flow into the Op's continuation; only ErrProgramInvalid reaches
// the top-level caller, because it signals a chain-assembly bug rather than
// a runtime condition.
var (
	// ErrProgramInvalid reports a composition defect: a pending program
	// reached the terminal handler, or a program was in an impossible state.
	ErrProgramInvalid = errors.New("invalid program state")

	// ErrTransport reports a failed outbound request.
	ErrTransport = errors.New("transport request failed")

	// ErrParse reports an unintelligible provider response body.
	ErrParse = errors.New("failed to parse provider response")

	// ErrToolNotFound reports a tool call naming a tool no handler is bound
	// to.
	ErrToolNotFound = errors.New("tool not found")

	// ErrArgumentParsing reports malformed or mismatched tool-call argument
	// JSON.
	ErrArgumentParsing = errors.New("failed to parse tool arguments")

	// ErrToolExecution reports a failure inside the tool function itself.
	ErrToolExecution = errors.New("tool execution failed")

	// ErrOutputSerialization reports a tool output that could not be
	// serialized.
	ErrOutputSerialization = errors.New("failed to serialize tool output")

	// ErrAuthentication reports rejected or unusable credentials.
	ErrAuthentication = errors.New("authentication failed")

	// ErrProviderUnavailable reports an error response from the provider's
	// API.
	ErrProviderUnavailable = errors.New("provider unavailable")
)
