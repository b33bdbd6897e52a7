package transport

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"
	"unicode"

	"github.com/mitchellh/mapstructure"

	"github.com/mbeoliero/tutorchat/pkg/constant"
	"github.com/mbeoliero/tutorchat/sdk"
)

// decodeError carries the metrics reason of a dropped event
type decodeError struct {
	reason string
	err    error
}

func (e *decodeError) Error() string { return fmt.Sprintf("%s: %v", e.reason, e.err) }
func (e *decodeError) Unwrap() error { return e.err }

// inboundEvents maps each server event to the payload type it carries
var inboundEvents = map[string]func() any{
	constant.EventNewMessage:          func() any { return &sdk.Message{} },
	constant.EventMessageReceived:     func() any { return &sdk.Message{} },
	constant.EventMessageStatusUpdate: func() any { return &sdk.StatusUpdate{} },
	constant.EventConversationUpdate:  func() any { return &sdk.Conversation{} },
	constant.EventUserTyping:          func() any { return &sdk.TypingEvent{} },
	constant.EventConversationClosed:  func() any { return &sdk.ConversationClosed{} },
}

// IsInboundEvent reports whether event is part of the server vocabulary
func IsInboundEvent(event string) bool {
	_, ok := inboundEvents[event]
	return ok
}

// DecodeEvent turns a raw payload into the typed value for event and validates it.
// Anything that does not fit the schema is rejected.
func DecodeEvent(event string, data json.RawMessage) (any, error) {
	factory, ok := inboundEvents[event]
	if !ok {
		return nil, &decodeError{reason: dropUnknownEvent, err: fmt.Errorf("unknown event %q", event)}
	}

	var raw any
	if len(data) == 0 {
		return nil, &decodeError{reason: dropNotObject, err: fmt.Errorf("empty payload")}
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &decodeError{reason: dropMalformedJSON, err: err}
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, &decodeError{reason: dropNotObject, err: fmt.Errorf("payload is %T", raw)}
	}

	m = normalize(m)
	if event == constant.EventNewMessage || event == constant.EventMessageReceived {
		flattenRef(m, "sender", "sender_id")
		flattenRef(m, "receiver", "receiver_id")
		alias(m, "message_type", "msg_type")
		alias(m, "type", "msg_type")
	}

	out := factory()
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           out,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			timestampHook(),
			floatToIntHook(),
		),
	})
	if err != nil {
		return nil, &decodeError{reason: dropDecode, err: err}
	}
	if err := dec.Decode(m); err != nil {
		return nil, &decodeError{reason: dropDecode, err: err}
	}

	if err := sdk.Validator().Struct(out); err != nil {
		return nil, &decodeError{reason: dropInvalid, err: err}
	}
	return out, nil
}

// normalize rewrites keys to snake_case and maps _id to id, recursively
func normalize(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		key := snakeCase(k)
		if key == "_id" {
			key = "id"
		}
		switch t := v.(type) {
		case map[string]any:
			v = normalize(t)
		case []any:
			items := make([]any, len(t))
			for i, it := range t {
				if mm, ok := it.(map[string]any); ok {
					items[i] = normalize(mm)
				} else {
					items[i] = it
				}
			}
			v = items
		}
		// an explicit id wins over an _id alias
		if _, exists := out[key]; exists && k == "_id" {
			continue
		}
		out[key] = v
	}
	return out
}

// flattenRef accepts a participant given either as an id or as an object with an id
func flattenRef(m map[string]any, from, to string) {
	v, ok := m[from]
	if !ok {
		return
	}
	delete(m, from)
	if _, exists := m[to]; exists {
		return
	}
	switch t := v.(type) {
	case string:
		m[to] = t
	case map[string]any:
		if id, ok := t["id"]; ok {
			m[to] = id
		}
	}
}

func alias(m map[string]any, from, to string) {
	v, ok := m[from]
	if !ok {
		return
	}
	delete(m, from)
	if _, exists := m[to]; !exists {
		m[to] = v
	}
}

func snakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// timestampHook accepts RFC3339 strings for int64 unix-millisecond fields
func timestampHook() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.String || to.Kind() != reflect.Int64 {
			return data, nil
		}
		if ts, err := time.Parse(time.RFC3339Nano, data.(string)); err == nil {
			return ts.UnixMilli(), nil
		}
		return data, nil
	}
}

// floatToIntHook converts JSON numbers to the integer field they land in
func floatToIntHook() mapstructure.DecodeHookFuncKind {
	return func(from, to reflect.Kind, data any) (any, error) {
		if from != reflect.Float64 {
			return data, nil
		}
		switch to {
		case reflect.Int:
			return int(data.(float64)), nil
		case reflect.Int32:
			return int32(data.(float64)), nil
		case reflect.Int64:
			return int64(data.(float64)), nil
		}
		return data, nil
	}
}
