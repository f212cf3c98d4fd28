package api

import (
	"fmt"

	"github.com/go-openapi/strfmt"
	"github.com/go-openapi/swag"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Well known finish reasons.
const (
	FinishReasonStop          = "stop"
	FinishReasonLength        = "length"
	FinishReasonContentFilter = "content_filter"
)

// Delta is the partial message carried by one streamed choice.
type Delta struct {
	Role    Role   `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// Choice is one candidate completion inside a streamed chunk.
// A non-nil FinishReason is the terminal signal for that candidate.
type Choice struct {
	Index        int     `json:"index"`
	Delta        Delta   `json:"delta"`
	FinishReason *string `json:"finish_reason"`
}

// Finished reports whether the choice carries a finish reason.
func (c Choice) Finished() bool {
	return c.FinishReason != nil
}

// CompletionChunk is one decoded `data:` payload of a streamed completion.
type CompletionChunk struct {
	ID      string   `json:"id"`
	Object  string   `json:"object,omitempty"`
	Created int64    `json:"created,omitempty"`
	Model   string   `json:"model,omitempty"`
	Choices []Choice `json:"choices"`
}

var choiceDeltaJSON = []byte(`{"type":"choice_delta"}`)

// ChoiceDelta is what a sink receives: one choice of one chunk, stamped with
// the stream it belongs to.
type ChoiceDelta struct {
	StreamID       uuid.UUID       `json:"stream_id"`
	ConversationID string          `json:"conversation_id,omitempty"`
	Index          int             `json:"index"`
	Role           Role            `json:"role,omitempty"`
	Content        string          `json:"content"`
	FinishReason   *string         `json:"finish_reason,omitempty"`
	Timestamp      strfmt.DateTime `json:"timestamp,omitempty"`
	Meta           gjson.Result    `json:"meta,omitempty"`
}

// Finished reports whether this delta terminates its choice.
func (d ChoiceDelta) Finished() bool {
	return d.FinishReason != nil
}

// Reason returns the finish reason or an empty string.
func (d ChoiceDelta) Reason() string {
	return swag.StringValue(d.FinishReason)
}

// MarshalJSON implements custom JSON marshaling for ChoiceDelta
func (d ChoiceDelta) MarshalJSON() ([]byte, error) {
	result := choiceDeltaJSON

	var err error
	result, err = sjson.SetBytes(result, "stream_id", d.StreamID.String())
	if err != nil {
		return nil, err
	}

	if d.ConversationID != "" {
		result, err = sjson.SetBytes(result, "conversation_id", d.ConversationID)
		if err != nil {
			return nil, err
		}
	}

	result, err = sjson.SetBytes(result, "index", d.Index)
	if err != nil {
		return nil, err
	}

	if d.Role != "" {
		result, err = sjson.SetBytes(result, "role", string(d.Role))
		if err != nil {
			return nil, err
		}
	}

	result, err = sjson.SetBytes(result, "content", d.Content)
	if err != nil {
		return nil, err
	}

	if d.FinishReason != nil {
		result, err = sjson.SetBytes(result, "finish_reason", *d.FinishReason)
		if err != nil {
			return nil, err
		}
	}

	if !d.Timestamp.IsZero() {
		result, err = sjson.SetBytes(result, "timestamp", d.Timestamp.String())
		if err != nil {
			return nil, err
		}
	}

	if d.Meta.Exists() {
		result, err = sjson.SetRawBytes(result, "meta", []byte(d.Meta.Raw))
		if err != nil {
			return nil, err
		}
	}

	return result, nil
}

// UnmarshalJSON implements custom JSON unmarshaling for ChoiceDelta
func (d *ChoiceDelta) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid json: %s", data)
	}

	msgType := gjson.GetBytes(data, "type")
	if !msgType.Exists() || msgType.String() != "choice_delta" {
		return fmt.Errorf("missing or invalid type, expected 'choice_delta'")
	}

	streamID := gjson.GetBytes(data, "stream_id")
	if !streamID.Exists() {
		return fmt.Errorf("missing required field 'stream_id'")
	}
	if err := d.StreamID.UnmarshalText([]byte(streamID.String())); err != nil {
		return fmt.Errorf("invalid stream_id: %w", err)
	}

	d.ConversationID = gjson.GetBytes(data, "conversation_id").String()
	d.Index = int(gjson.GetBytes(data, "index").Int())
	d.Role = Role(gjson.GetBytes(data, "role").String())
	d.Content = gjson.GetBytes(data, "content").String()

	if reason := gjson.GetBytes(data, "finish_reason"); reason.Exists() && reason.Type != gjson.Null {
		d.FinishReason = swag.String(reason.String())
	}

	if timestamp := gjson.GetBytes(data, "timestamp"); timestamp.Exists() {
		if err := d.Timestamp.UnmarshalText([]byte(timestamp.String())); err != nil {
			return fmt.Errorf("invalid timestamp: %w", err)
		}
	}

	if meta := gjson.GetBytes(data, "meta"); meta.Exists() {
		d.Meta = meta
	}

	return nil
}

// DecodeChunk decodes one stream payload. The payload must be a JSON object.
func DecodeChunk(data []byte) (CompletionChunk, error) {
	if !gjson.ParseBytes(data).IsObject() {
		return CompletionChunk{}, fmt.Errorf("chunk is not a JSON object: %.32q", data)
	}
	var chunk CompletionChunk
	if err := json.Unmarshal(data, &chunk); err != nil {
		return CompletionChunk{}, err
	}
	return chunk, nil
}
