package oachat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/casualjim/oachat/api"
	"github.com/casualjim/oachat/pkg/jsonx"
	json "github.com/goccy/go-json"
	"github.com/invopop/jsonschema"
	"github.com/tidwall/sjson"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Common tuning option names.
const (
	OptionMaxTokens        = "max_tokens"
	OptionTemperature      = "temperature"
	OptionTopP             = "top_p"
	OptionPresencePenalty  = "presence_penalty"
	OptionFrequencyPenalty = "frequency_penalty"
	OptionN                = "n"
)

// reservedFields are owned by the client and cannot be overridden by options.
var reservedFields = []string{"model", "messages", "stream", "user", "response_format"}

// FinishPolicy decides when a stream with several choices is complete.
type FinishPolicy int

const (
	// FinishOnFirst ends the stream after the chunk in which any choice
	// reports a finish reason.
	FinishOnFirst FinishPolicy = iota
	// FinishOnAll ends the stream once every choice seen so far has reported
	// a finish reason.
	FinishOnAll
)

func (p FinishPolicy) String() string {
	switch p {
	case FinishOnFirst:
		return "first"
	case FinishOnAll:
		return "all"
	default:
		return fmt.Sprintf("FinishPolicy(%d)", int(p))
	}
}

// ContextProvider supplies the prior messages of a conversation, oldest first.
type ContextProvider interface {
	Context(ctx context.Context) ([]api.ChatMessage, error)
}

// ContextFunc adapts a function to ContextProvider.
type ContextFunc func(ctx context.Context) ([]api.ChatMessage, error)

func (f ContextFunc) Context(ctx context.Context) ([]api.ChatMessage, error) {
	return f(ctx)
}

// Sink receives the deltas of a stream one at a time, in the order they were
// read. The context is the stream's context; a sink that may block should
// give up when it is done.
type Sink interface {
	Deliver(ctx context.Context, delta api.ChoiceDelta) error
}

// ResponseFormat asks the service for output matching a JSON schema.
type ResponseFormat struct {
	Name        string
	Description string
	Schema      *jsonschema.Schema
	Strict      bool
}

// Structured outputs accept a subset of JSON schema; these reflector flags
// keep the generated schema inside it.
var reflector = jsonschema.Reflector{
	AllowAdditionalProperties: false,
	DoNotReference:            true,
}

// ResponseSchema builds a strict ResponseFormat from the Go type T.
//
//	type Answer struct {
//	    Verdict string `json:"verdict"`
//	}
//
//	params.ResponseFormat = oachat.ResponseSchema[Answer]("answer", "The verdict")
func ResponseSchema[T any](name, description string) *ResponseFormat {
	var v T
	return &ResponseFormat{
		Name:        name,
		Description: description,
		Schema:      reflector.Reflect(v),
		Strict:      true,
	}
}

func (f *ResponseFormat) marshal() ([]byte, error) {
	schema, err := json.Marshal(f.Schema)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response schema: %w", err)
	}
	result := []byte(`{"type":"json_schema"}`)
	result, err = sjson.SetBytes(result, "json_schema.name", f.Name)
	if err != nil {
		return nil, err
	}
	if f.Description != "" {
		result, err = sjson.SetBytes(result, "json_schema.description", f.Description)
		if err != nil {
			return nil, err
		}
	}
	result, err = sjson.SetRawBytes(result, "json_schema.schema", schema)
	if err != nil {
		return nil, err
	}
	return sjson.SetBytes(result, "json_schema.strict", f.Strict)
}

// CompletionParams describes one chat completion request.
type CompletionParams struct {
	// ConversationID groups streams; a new stream cancels a running stream
	// with the same id. Empty disables superseding.
	ConversationID string

	// Model is the model identifier. Required.
	Model string

	// System, when set, is sent as the first message.
	System string

	// Messages follow the messages returned by the ContextProvider.
	Messages []api.ChatMessage

	// Options are free-form tuning options copied into the request body in
	// insertion order, e.g. max_tokens or temperature.
	Options *orderedmap.OrderedMap[string, any]

	// User overrides Config.User for this request.
	User string

	// Stream is forced on by StreamChat and off by Complete.
	Stream bool

	// FinishPolicy applies to streamed requests.
	FinishPolicy FinishPolicy

	// ResponseFormat requests structured output.
	ResponseFormat *ResponseFormat
}

// SetOption records a tuning option, replacing an earlier value for the same
// name but keeping its position.
func (p *CompletionParams) SetOption(name string, value any) {
	if p.Options == nil {
		p.Options = orderedmap.New[string, any]()
	}
	p.Options.Set(name, value)
}

// messages assembles the outgoing conversation: system preamble, prior
// context, then the request's own messages.
func (p *CompletionParams) messages(history []api.ChatMessage) ([]api.ChatMessage, error) {
	result := make([]api.ChatMessage, 0, len(history)+len(p.Messages)+1)
	if strings.TrimSpace(p.System) != "" {
		result = append(result, api.SystemMessage(p.System))
	}
	result = append(result, history...)
	result = append(result, p.Messages...)

	var err error
	for i, m := range result {
		if verr := m.Validate(); verr != nil {
			err = errors.Join(err, fmt.Errorf("message %d: %w", i, verr))
		}
	}
	if len(result) == 0 {
		err = errors.Join(err, errors.New("at least one message is required"))
	}
	return result, err
}

// body serializes the request. The reserved fields are written after the
// options so a caller cannot turn streaming off or swap the user.
func (p *CompletionParams) body(history []api.ChatMessage, user string) ([]byte, error) {
	if strings.TrimSpace(p.Model) == "" {
		return nil, &ConfigurationError{Field: "Model", Err: errors.New("is required")}
	}

	msgs, err := p.messages(history)
	if err != nil {
		return nil, fmt.Errorf("invalid messages: %w", err)
	}
	mj, err := json.Marshal(msgs)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal messages: %w", err)
	}

	result := []byte(`{}`)
	result, err = sjson.SetBytes(result, "model", p.Model)
	if err != nil {
		return nil, err
	}
	result, err = sjson.SetRawBytes(result, "messages", mj)
	if err != nil {
		return nil, err
	}

	result, err = jsonx.Merge(result, p.Options, reservedFields...)
	if err != nil {
		return nil, err
	}

	if p.ResponseFormat != nil {
		rf, err := p.ResponseFormat.marshal()
		if err != nil {
			return nil, err
		}
		result, err = sjson.SetRawBytes(result, "response_format", rf)
		if err != nil {
			return nil, err
		}
	}

	if p.User != "" {
		user = p.User
	}
	if user != "" {
		result, err = sjson.SetBytes(result, "user", user)
		if err != nil {
			return nil, err
		}
	}
	return sjson.SetBytes(result, "stream", p.Stream)
}
