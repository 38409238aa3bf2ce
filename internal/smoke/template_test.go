package smoke

import (
	"strings"
	"testing"
)

func TestExpandTemplates(t *testing.T) {
	t.Setenv("MOTION_SMOKE_TEST_VAR", "from-env")
	vars := map[string]string{
		"email":       "a@b.c",
		"ai_event_id": "",
		"open":        "pa{{ss",
		"braced":      "p{{x}}w",
		"self":        "{{self}}",
	}

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr string
	}{
		{name: "plain", input: "/auth/signin", want: "/auth/signin"},
		{name: "variable", input: "/users/{{email}}", want: "/users/a@b.c"},
		{name: "spaces", input: "{{ email }}", want: "a@b.c"},
		{name: "empty variable", input: "/ai-events/{{ai_event_id}}", want: "/ai-events/"},
		{name: "env", input: "x-{{env.MOTION_SMOKE_TEST_VAR}}", want: "x-from-env"},
		{name: "unset env", input: "{{env.MOTION_SMOKE_UNSET_VAR}}", want: ""},
		{name: "several", input: "{{email}}/{{email}}", want: "a@b.c/a@b.c"},
		{name: "unknown", input: "{{nope}}", wantErr: "unresolved template expression"},
		{name: "unterminated", input: "/x/{{email", wantErr: "unterminated"},
		{name: "unterminated after value", input: "{{email}}/{{email", wantErr: "at position 10"},
		{name: "value with open braces", input: "{{open}}", want: "pa{{ss"},
		{name: "value with placeholder", input: "{{braced}}", want: "p{{x}}w"},
		{name: "value naming itself", input: "<{{self}}>", want: "<{{self}}>"},
		{name: "value then variable", input: "{{open}}/{{email}}", want: "pa{{ss/a@b.c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpandTemplates(tt.input, vars)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestExpandValue(t *testing.T) {
	vars := map[string]string{"email": "a@b.c", "motion_event_id": "m-1"}
	body := map[string]any{
		"email":  "{{email}}",
		"ids":    []any{"{{motion_event_id}}", 7},
		"event":  DefaultAIEvent(),
		"flag":   true,
		"nested": map[string]any{"eventId": "{{motion_event_id}}"},
	}

	got, err := expandValue(body, vars)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m := got.(map[string]any)
	if m["email"] != "a@b.c" {
		t.Errorf("email: got %v", m["email"])
	}
	ids := m["ids"].([]any)
	if ids[0] != "m-1" || ids[1] != 7 {
		t.Errorf("ids: got %v", ids)
	}
	if m["nested"].(map[string]any)["eventId"] != "m-1" {
		t.Errorf("nested: got %v", m["nested"])
	}
	if m["event"].(AIEvent).Title != "Downtown Art Walk" {
		t.Error("structs should pass through")
	}
	if body["email"] != "{{email}}" {
		t.Error("input should not be modified")
	}

	if _, err := expandValue(map[string]any{"x": []any{"{{missing}}"}}, vars); err == nil ||
		!strings.HasPrefix(err.Error(), "x: [0]: ") {
		t.Errorf("expected located error, got %v", err)
	}
}
