package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

var (
	ErrEmptyResponse     = errors.New("ai: empty response")
	ErrMalformedResponse = errors.New("ai: malformed response")
)

// DecodeJSON decodes a model response into v.
//
// Markdown fences and prose around the outermost object are dropped. When strict
// decoding fails the text goes through jsonrepair once. Unknown fields are rejected so a
// response with the wrong shape is reported as ErrMalformedResponse.
func DecodeJSON(raw string, v any) error {
	s := extractObject(raw)
	if s == "" {
		return ErrEmptyResponse
	}
	if err := strictUnmarshal(s, v); err == nil {
		return nil
	}
	repaired, err := jsonrepair.JSONRepair(s)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if err := strictUnmarshal(repaired, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

func strictUnmarshal(s string, v any) error {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("trailing data after object")
	}
	return nil
}

func extractObject(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return s
	}
	end := strings.LastIndexByte(s, '}')
	if end < start {
		// Truncated output: keep the tail so jsonrepair can close it.
		return s[start:]
	}
	return s[start : end+1]
}
