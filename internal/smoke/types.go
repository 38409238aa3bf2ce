package smoke

import (
	"github.com/golang-jwt/jwt/v5"
)

// Saved-event sources.
const (
	SourceMotion = "motion"
	SourceAI     = "ai"
)

// Session is the signed-in identity for one run. Token and UserID are copied
// from the sign-in response and never inspected beyond the report.
type Session struct {
	Email    string
	Password string
	Token    string
	UserID   string
}

// Subject returns the "sub" claim of the token without verifying it, or ""
// when there is no parseable token.
func (s *Session) Subject() string {
	if s.Token == "" {
		return ""
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(s.Token, claims); err != nil {
		return ""
	}
	sub, _ := claims.GetSubject()
	return sub
}

// SavedEvent is a (source, eventId) reference on the user's saved list.
type SavedEvent struct {
	EventID string `json:"eventId"`
	Source  string `json:"source"`
}

// Location is the venue of an AI event.
type Location struct {
	Venue   string `json:"venue"`
	City    string `json:"city"`
	State   string `json:"state"`
	Country string `json:"country"`
}

// AIEvent is the payload submitted when saving an AI-sourced event.
type AIEvent struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	StartDate   string   `json:"start_date"`
	EndDate     string   `json:"end_date"`
	StartTime   string   `json:"start_time"`
	EndTime     string   `json:"end_time"`
	Timezone    string   `json:"timezone"`
	Location    Location `json:"location"`
	SourceURL   string   `json:"source_url"`
	Tags        []string `json:"tags"`
}

// DefaultAIEvent returns the fixed event the workflow saves. Each call
// builds a fresh value.
func DefaultAIEvent() AIEvent {
	return AIEvent{
		Title:       "Downtown Art Walk",
		Description: "Gallery crawl with late-night hours.",
		StartDate:   "2025-10-02",
		EndDate:     "2025-10-02",
		StartTime:   "18:00",
		EndTime:     "21:00",
		Timezone:    "America/New_York",
		Location: Location{
			Venue:   "Town Square",
			City:    "Alpharetta",
			State:   "GA",
			Country: "USA",
		},
		SourceURL: "https://example.com/events/art-walk",
		Tags:      []string{"arts", "community"},
	}
}
