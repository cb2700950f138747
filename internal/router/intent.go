package router

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// Intent is the classification a model returned for a message.
type Intent struct {
	Intent  string `json:"intent"`
	Target  string `json:"target,omitempty"`
	Content string `json:"content,omitempty"`
	Query   string `json:"query,omitempty"`
}

var codeFence = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// ParseIntent reads a model reply. The reply is either a JSON object, possibly
// inside a code fence and possibly malformed, or a bare intent word. Anything
// unreadable is treated as chat.
func ParseIntent(reply string) Intent {
	text := strings.TrimSpace(reply)
	if m := codeFence.FindStringSubmatch(text); m != nil {
		text = strings.TrimSpace(m[1])
	}
	if text == "" {
		return Intent{Intent: IntentChat}
	}
	if !strings.HasPrefix(text, "{") {
		return Intent{Intent: strings.ToLower(text)}
	}

	var raw struct {
		Intent   string `json:"intent"`
		Category string `json:"category"`
		Target   string `json:"target"`
		Content  string `json:"content"`
		Query    string `json:"query"`
	}
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		repaired, rerr := jsonrepair.JSONRepair(text)
		if rerr != nil {
			return Intent{Intent: IntentChat}
		}
		if err := json.Unmarshal([]byte(repaired), &raw); err != nil {
			return Intent{Intent: IntentChat}
		}
	}

	intent := raw.Intent
	if intent == "" {
		// Older prompts answered with "category".
		intent = raw.Category
	}
	if intent == "" {
		intent = IntentChat
	}
	return Intent{
		Intent:  strings.ToLower(intent),
		Target:  raw.Target,
		Content: raw.Content,
		Query:   raw.Query,
	}
}

// ReplyText pulls the reply text out of the response shapes chat backends
// produce: {"output":[{"content":[{"text":..}]}]}, {"output":{"content":[{"text":..}]}},
// {"content":..} and {"text":..}.
func ReplyText(payload []byte) string {
	type part struct {
		Text string `json:"text"`
	}
	type message struct {
		Content []part `json:"content"`
	}
	var envelope struct {
		Output  json.RawMessage `json:"output"`
		Content json.RawMessage `json:"content"`
		Text    string          `json:"text"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return ""
	}

	var list []message
	if json.Unmarshal(envelope.Output, &list) == nil && len(list) > 0 && len(list[0].Content) > 0 {
		return list[0].Content[0].Text
	}
	var single message
	if json.Unmarshal(envelope.Output, &single) == nil && len(single.Content) > 0 {
		return single.Content[0].Text
	}
	var content string
	if json.Unmarshal(envelope.Content, &content) == nil && content != "" {
		return content
	}
	return envelope.Text
}
