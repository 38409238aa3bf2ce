package smoke

import (
	"net/http"

	"github.com/tidwall/gjson"
)

// Step names, in workflow order.
const (
	StepSignin           = "signin"
	StepSaveMotion       = "save-motion"
	StepSaveAI           = "save-ai"
	StepProfile          = "profile"
	StepSavedEvents      = "saved-events"
	StepMotionEvent      = "motion-event"
	StepAIEvent          = "ai-event"
	StepDeleteMotion     = "delete-motion"
	StepDeleteAI         = "delete-ai"
	StepSavedEventsFinal = "saved-events-final"
)

// Variables available to step templates.
const (
	VarEmail         = "email"
	VarPassword      = "password"
	VarMotionEventID = "motion_event_id"
	VarAIEventID     = "ai_event_id"
	VarToken         = "token"
	VarUserID        = "user_id"
)

// CaptureFunc derives variables from the response bodies seen so far,
// keyed by step name. An empty value means "not captured".
type CaptureFunc func(bodies map[string][]byte) map[string]string

// Step is one HTTP call of the workflow.
type Step struct {
	Name   string
	Method string
	Path   string            // may contain {{var}} placeholders
	Query  map[string]string // values may contain placeholders
	Body   any               // strings inside maps and slices are expanded

	// Log appends the response to the log artifact.
	Log bool
	// When names a variable that must be non-empty for the step to run.
	When string
	// Capture runs after a successful response.
	Capture CaptureFunc
}

// Plan returns the fixed workflow. Order matters: later steps read
// variables captured by earlier ones.
func Plan() []Step {
	return []Step{
		{
			Name:    StepSignin,
			Method:  http.MethodPost,
			Path:    "/auth/signin",
			Body:    map[string]any{"email": "{{email}}", "password": "{{password}}"},
			Log:     true,
			Capture: captureSession,
		},
		{
			Name:   StepSaveMotion,
			Method: http.MethodPost,
			Path:   "/users/saved-events",
			Body:   map[string]any{"email": "{{email}}", "source": SourceMotion, "eventId": "{{motion_event_id}}"},
			Log:    true,
		},
		{
			Name:    StepSaveAI,
			Method:  http.MethodPost,
			Path:    "/users/saved-events",
			Body:    map[string]any{"email": "{{email}}", "source": SourceAI, "event": DefaultAIEvent()},
			Log:     true,
			Capture: captureAIEventID,
		},
		{
			Name:   StepProfile,
			Method: http.MethodGet,
			Path:   "/users/profile",
			Query:  map[string]string{"email": "{{email}}"},
			Log:    true,
		},
		{
			Name:   StepSavedEvents,
			Method: http.MethodGet,
			Path:   "/users/saved-events",
			Query:  map[string]string{"email": "{{email}}"},
			Log:    true,
		},
		{
			Name:   StepMotionEvent,
			Method: http.MethodGet,
			Path:   "/events/{{motion_event_id}}",
		},
		{
			Name:   StepAIEvent,
			Method: http.MethodGet,
			Path:   "/ai-events/{{ai_event_id}}",
			When:   VarAIEventID,
		},
		{
			Name:   StepDeleteMotion,
			Method: http.MethodDelete,
			Path:   "/users/saved-events",
			Body:   map[string]any{"email": "{{email}}", "eventId": "{{motion_event_id}}", "source": SourceMotion},
			Log:    true,
		},
		{
			Name:   StepDeleteAI,
			Method: http.MethodDelete,
			Path:   "/users/saved-events",
			Body:   map[string]any{"email": "{{email}}", "eventId": "{{ai_event_id}}", "source": SourceAI},
			Log:    true,
			When:   VarAIEventID,
		},
		{
			Name:   StepSavedEventsFinal,
			Method: http.MethodGet,
			Path:   "/users/saved-events",
			Query:  map[string]string{"email": "{{email}}"},
			Log:    true,
		},
	}
}

// captureSession copies token and userId from the sign-in response.
func captureSession(bodies map[string][]byte) map[string]string {
	body := bodies[StepSignin]
	return map[string]string{
		VarToken:  gjson.GetBytes(body, "token").String(),
		VarUserID: gjson.GetBytes(body, "userId").String(),
	}
}

// captureAIEventID finds the first saved entry with source "ai". The list
// comes from the save-ai response, or from save-motion when save-ai has no
// non-empty savedEvents array.
func captureAIEventID(bodies map[string][]byte) map[string]string {
	list := gjson.GetBytes(bodies[StepSaveAI], "savedEvents")
	if !nonEmptyArray(list) {
		list = gjson.GetBytes(bodies[StepSaveMotion], "savedEvents")
	}
	var id string
	if nonEmptyArray(list) {
		id = list.Get(`#(source=="ai").eventId`).String()
	}
	return map[string]string{VarAIEventID: id}
}

func nonEmptyArray(r gjson.Result) bool {
	return r.IsArray() && len(r.Array()) > 0
}
