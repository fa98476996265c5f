package core

import "net/http"

// ModelID is a string identifier for a model. Using string avoids coupling
// to provider-specific enums.
type ModelID string

// Transport translates between the internal conversation and one vendor's
// wire format. The middleware chain never inspects wire contents: it builds
// the request with Accept, executes it, and hands the raw body to Parse.
type Transport interface {
	// Accept converts a chat into a ready-to-send HTTP request for model.
	Accept(model ModelID, chat Chat) (*http.Request, error)

	// Parse converts a raw response body into the reply message.
	Parse(body string) (Message, error)
}
