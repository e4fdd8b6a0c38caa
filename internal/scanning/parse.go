package scanning

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/valyala/fastjson"
)

// Field is a single key returned by the model, with its value kept as raw JSON
type Field struct {
	Name  string
	Value json.RawMessage
}

// Fields holds the model reply keys in the order the model returned them
type Fields []Field

// Get returns the last value stored under name
func (f Fields) Get(name string) (json.RawMessage, bool) {
	for i := len(f) - 1; i >= 0; i-- {
		if f[i].Name == name {
			return f[i].Value, true
		}
	}
	return nil, false
}

// ReplyText pulls choices[0].message.content out of a chat completion response body
func ReplyText(status int, body []byte) (string, error) {
	if status < 200 || status > 299 {
		return "", fmt.Errorf("%w (status %d): %s", ErrService, status, string(body))
	}

	var p fastjson.Parser
	v, err := p.ParseBytes(body)
	if err != nil {
		return "", fmt.Errorf("%w: decoding response: %v: %s", ErrMalformedResponse, err, string(body))
	}

	content := v.Get("choices", "0", "message", "content")
	if content == nil || content.Type() != fastjson.TypeString {
		return "", fmt.Errorf("%w: no message content in first choice: %s", ErrMalformedResponse, string(body))
	}

	text, err := content.StringBytes()
	if err != nil {
		return "", fmt.Errorf("%w: reading message content: %v", ErrMalformedResponse, err)
	}
	return string(text), nil
}

// Repair cleans up the near-valid JSON that models tend to emit.
// Steps run in a fixed order and each one is a no-op on clean JSON.
func Repair(text string) string {
	text = strings.ReplaceAll(text, `\"`, `"`)
	text = strings.ReplaceAll(text, `\n`, "")
	text = strings.TrimSpace(text)

	// Remove markdown code blocks if present
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(text, "```")
		text = strings.TrimSpace(text)
	}

	text = strings.TrimSuffix(text, ",")

	// {"a": 1,} -> {"a": 1}
	if strings.HasSuffix(text, "}") {
		body := strings.TrimRightFunc(text[:len(text)-1], isJSONSpace)
		if strings.HasSuffix(body, ",") {
			text = body[:len(body)-1] + "}"
		}
	}

	return text
}

func isJSONSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

// ParseFields strictly parses text as a JSON object
func ParseFields(text string) (Fields, error) {
	var p fastjson.Parser
	v, err := p.Parse(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v: %s", ErrMalformedResponse, err, text)
	}
	// fastjson accepts number literals such as NaN, 05 and 1.2.3 that encoding/json rejects
	if !json.Valid([]byte(text)) {
		return nil, fmt.Errorf("%w: invalid JSON: %s", ErrMalformedResponse, text)
	}

	obj, err := v.Object()
	if err != nil {
		return nil, fmt.Errorf("%w: reply is %s, not an object: %s", ErrMalformedResponse, v.Type(), text)
	}

	fields := make(Fields, 0, obj.Len())
	obj.Visit(func(key []byte, val *fastjson.Value) {
		fields = append(fields, Field{
			Name:  string(key),
			Value: json.RawMessage(val.MarshalTo(nil)),
		})
	})

	return fields, nil
}

// parseReply runs the repair heuristics and the strict parse on a model reply
func parseReply(text string) (Fields, error) {
	return ParseFields(Repair(text))
}
