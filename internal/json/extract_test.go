package json

import (
	"strings"
	"testing"
)

type planDoc struct {
	Plan []struct {
		Tool      string         `json:"tool"`
		Arguments map[string]any `json:"arguments"`
	} `json:"plan"`
}

func TestPureJSON(t *testing.T) {
	response := `{"plan": [{"tool": "get_flight_basic_info", "arguments": {"flight_number": "215"}}]}`
	result, err := ExtractJSONFromResponse[planDoc](response)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Plan) != 1 || result.Plan[0].Tool != "get_flight_basic_info" {
		t.Errorf("unexpected plan: %+v", result.Plan)
	}
}

func TestJSONWithSurroundingTextRejected(t *testing.T) {
	responses := []string{
		`Sure! Here is the plan: {"plan": []} Let me know if you need more.`,
		`I can't answer that reliably. An example plan would look like {"plan": [{"tool": "raw_mongodb_query", "arguments": {"query_json": "{}"}}]} but I am not sure.`,
		`{not json} {"plan": []}`,
	}
	for _, response := range responses {
		if got, err := ExtractJSON(response); err == nil {
			t.Errorf("ExtractJSON(%q) = %q, want error", response, got)
		}
	}
}

func TestFencedBlock(t *testing.T) {
	response := "```json\n{\"plan\": [{\"tool\": \"health_check\", \"arguments\": {}}]}\n```"
	result, err := ExtractJSONFromResponse[planDoc](response)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Plan) != 1 || result.Plan[0].Tool != "health_check" {
		t.Errorf("unexpected plan: %+v", result.Plan)
	}

	if _, err := ExtractJSON("  ```\n{\"plan\": []}\n```\n"); err != nil {
		t.Errorf("bare fence: unexpected error: %v", err)
	}
}

func TestFencedBlockWithChatterRejected(t *testing.T) {
	responses := []string{
		"Plan below.\n```json\n{\"plan\": []}\n```",
		"```json\n{\"plan\": []}\n```\nThanks.",
		"```json\n{\"plan\": []}\n```\n```json\n{\"plan\": []}\n```",
	}
	for _, response := range responses {
		if _, err := ExtractJSON(response); err == nil {
			t.Errorf("ExtractJSON(%q): want error", response)
		}
	}
}

func TestBracesInsideStrings(t *testing.T) {
	response := `{"plan": [{"tool": "raw_mongodb_query", "arguments": {"query_json": "{\"a\": \"}\"}"}}]}`
	result, err := ExtractJSONFromResponse[planDoc](response)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := result.Plan[0].Arguments["query_json"]; got != `{"a": "}"}` {
		t.Errorf("query_json = %v", got)
	}
}

func TestNoJSON(t *testing.T) {
	response := "This is just plain text without any JSON."
	_, err := ExtractJSONFromResponse[planDoc](response)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	// Error should contain a preview of the response
	if !strings.Contains(err.Error(), "failed to extract valid JSON") {
		t.Errorf("expected 'failed to extract valid JSON' in error, got: %v", err)
	}
}

func TestArrayRejected(t *testing.T) {
	if _, err := ExtractJSON(`[{"tool": "x"}]`); err == nil {
		t.Fatal("expected error for top-level array")
	}
}

func TestInvalidJSON(t *testing.T) {
	response := `{"plan": [ {"tool": "x", arguments: }`
	_, err := ExtractJSONFromResponse[planDoc](response)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}
