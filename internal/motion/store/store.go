// Package store holds the in-memory state of the Motion twin: user accounts
// with their saved-event lists, the Motion event catalog, and AI events.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Event sources accepted by the saved-events endpoints.
const (
	SourceMotion = "motion"
	SourceAI     = "ai"
)

// MaxTags is the number of tags kept on an AI event.
const MaxTags = 5

// isoMillis matches the backend's ISO-8601 timestamps.
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

var (
	ErrUserExists          = errors.New("user already exists")
	ErrUserNotFound        = errors.New("user not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrNotVerified         = errors.New("account is not verified")
	ErrMotionEventNotFound = errors.New("motion event not found")
	ErrInvalidSource       = errors.New("unknown event source")
)

// SavedEvent is one entry of a user's saved list.
type SavedEvent struct {
	EventID string `json:"eventId"`
	Source  string `json:"source"`
}

// User is an account record. Password is only read from seed files and is
// hashed on load.
type User struct {
	Email        string       `json:"email"`
	UserID       string       `json:"userId"`
	PasswordHash string       `json:"passwordHash,omitempty"`
	PasswordSalt string       `json:"passwordSalt,omitempty"`
	Password     string       `json:"password,omitempty"`
	IsVerified   *bool        `json:"isVerified,omitempty"`
	SavedEvents  []SavedEvent `json:"savedEvents,omitempty"`
	CreatedAt    string       `json:"createdAt,omitempty"`
	UpdatedAt    string       `json:"updatedAt,omitempty"`
}

// Profile is a User without its password material.
type Profile struct {
	Email       string       `json:"email"`
	UserID      string       `json:"userId"`
	IsVerified  *bool        `json:"isVerified,omitempty"`
	SavedEvents []SavedEvent `json:"savedEvents,omitempty"`
	CreatedAt   string       `json:"createdAt,omitempty"`
	UpdatedAt   string       `json:"updatedAt,omitempty"`
}

// Event is a Motion catalog event. Its shape is owned by the catalog, so it
// is kept as a free-form object with an "eventId" key.
type Event map[string]any

// AIEventInput is the client-supplied payload for an AI event.
type AIEventInput struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	StartDate   string         `json:"start_date"`
	EndDate     string         `json:"end_date"`
	StartTime   string         `json:"start_time"`
	EndTime     string         `json:"end_time"`
	Timezone    string         `json:"timezone"`
	Location    map[string]any `json:"location"`
	SourceURL   string         `json:"source_url"`
	Organizer   any            `json:"organizer"`
	TicketInfo  any            `json:"ticket_info"`
	Media       any            `json:"media"`
	Tags        []string       `json:"tags"`
}

// Missing reports whether a required AI event field is absent.
func (in AIEventInput) Missing() bool {
	return in.Title == "" || in.StartDate == "" || in.Timezone == "" || in.SourceURL == ""
}

// AIEvent is a stored AI event. Optional fields are null when not supplied.
type AIEvent struct {
	EventID     string         `json:"eventId"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	StartDate   string         `json:"start_date"`
	EndDate     *string        `json:"end_date"`
	StartTime   *string        `json:"start_time"`
	EndTime     *string        `json:"end_time"`
	Timezone    string         `json:"timezone"`
	Location    map[string]any `json:"location"`
	SourceURL   string         `json:"source_url"`
	Organizer   any            `json:"organizer"`
	TicketInfo  any            `json:"ticket_info"`
	Media       any            `json:"media"`
	Tags        []string       `json:"tags"`
	CreatedAt   string         `json:"createdAt"`
	UpdatedAt   string         `json:"updatedAt"`
}

// SavedEventDetail is a saved entry joined with its event, nil when the
// event no longer exists.
type SavedEventDetail struct {
	EventID string `json:"eventId"`
	Source  string `json:"source"`
	Event   any    `json:"event"`
}

// State is the serialisable form of the whole store, used by seed files and
// the admin state endpoints.
type State struct {
	Users    map[string]User    `json:"users"`
	Events   map[string]Event   `json:"events"`
	AIEvents map[string]AIEvent `json:"aiEvents"`
}

// MemoryStore is the twin's state. The mutex serialises multi-table
// operations; each Table also guards itself for single reads.
type MemoryStore struct {
	mu       sync.Mutex
	Users    *Table[User]
	Events   *Table[Event]
	AIEvents *Table[AIEvent]
	Clock    *Clock

	seed *State
}

// New creates an empty store.
func New() *MemoryStore {
	return &MemoryStore{
		Users:    NewTable[User](),
		Events:   NewTable[Event](),
		AIEvents: NewTable[AIEvent](),
		Clock:    NewClock(),
	}
}

// LoadSeedFile reads a JSON State from path, loads it, and keeps it so that
// Reset restores it.
func (s *MemoryStore) LoadSeedFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading seed file: %w", err)
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("parsing seed file %s: %w", path, err)
	}
	if err := s.load(st); err != nil {
		return err
	}
	s.seed = &st
	return nil
}

func (s *MemoryStore) now() string {
	return s.Clock.Now().UTC().Format(isoMillis)
}

// CreateUser registers email with a freshly hashed password.
func (s *MemoryStore) CreateUser(email, password string) (User, error) {
	hash, salt, err := HashPassword(password, "")
	if err != nil {
		return User{}, err
	}
	u := User{
		Email:        email,
		UserID:       uuid.NewString(),
		PasswordHash: hash,
		PasswordSalt: salt,
		CreatedAt:    s.now(),
	}
	if !s.Users.PutIfAbsent(email, u) {
		return User{}, ErrUserExists
	}
	return u, nil
}

// Authenticate checks email and password.
func (s *MemoryStore) Authenticate(email, password string) (User, error) {
	u, ok := s.Users.Get(email)
	if !ok || !VerifyPassword(password, u.PasswordSalt, u.PasswordHash) {
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}

// Profile returns the user for email without password material.
func (s *MemoryStore) Profile(email string) (Profile, error) {
	u, ok := s.Users.Get(email)
	if !ok {
		return Profile{}, ErrUserNotFound
	}
	return Profile{
		Email:       u.Email,
		UserID:      u.UserID,
		IsVerified:  u.IsVerified,
		SavedEvents: u.SavedEvents,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}, nil
}

// CanSave reports why email may not save events: ErrUserNotFound or
// ErrNotVerified. Accounts without a verification flag may save.
func (s *MemoryStore) CanSave(email string) error {
	u, ok := s.Users.Get(email)
	if !ok {
		return ErrUserNotFound
	}
	if u.IsVerified != nil && !*u.IsVerified {
		return ErrNotVerified
	}
	return nil
}

// SaveEvent adds (source, eventID) to the user's saved list. For AI events
// the payload is upserted first and eventID may be empty, in which case a
// new UUID is assigned. It returns the resulting saved list.
func (s *MemoryStore) SaveEvent(email, source, eventID string, in *AIEventInput) ([]SavedEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.CanSave(email); err != nil {
		return nil, err
	}

	switch source {
	case SourceMotion:
		if _, ok := s.Events.Get(eventID); !ok {
			return nil, ErrMotionEventNotFound
		}
	case SourceAI:
		if eventID == "" {
			eventID = uuid.NewString()
		}
		var payload AIEventInput
		if in != nil {
			payload = *in
		}
		s.upsertAIEvent(eventID, payload)
	default:
		return nil, ErrInvalidSource
	}

	var out []SavedEvent
	s.Users.Update(email, func(u *User) {
		saved := append([]SavedEvent(nil), u.SavedEvents...)
		if !containsSaved(saved, eventID, source) {
			saved = append(saved, SavedEvent{EventID: eventID, Source: source})
		}
		u.SavedEvents = saved
		u.UpdatedAt = s.now()
		out = saved
	})
	return out, nil
}

// upsertAIEvent stores a new AI event, or only bumps updatedAt when the id
// is already taken.
func (s *MemoryStore) upsertAIEvent(eventID string, in AIEventInput) {
	now := s.now()
	if s.AIEvents.Update(eventID, func(ev *AIEvent) { ev.UpdatedAt = now }) {
		return
	}
	tags := in.Tags
	if len(tags) > MaxTags {
		tags = tags[:MaxTags]
	}
	if tags == nil {
		tags = []string{}
	}
	loc := in.Location
	if loc == nil {
		loc = map[string]any{}
	}
	s.AIEvents.Put(eventID, AIEvent{
		EventID:     eventID,
		Title:       in.Title,
		Description: in.Description,
		StartDate:   in.StartDate,
		EndDate:     optional(in.EndDate),
		StartTime:   optional(in.StartTime),
		EndTime:     optional(in.EndTime),
		Timezone:    in.Timezone,
		Location:    loc,
		SourceURL:   in.SourceURL,
		Organizer:   in.Organizer,
		TicketInfo:  in.TicketInfo,
		Media:       in.Media,
		Tags:        tags,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

// RemoveSavedEvent drops entries matching eventID, and source when it is
// non-empty. It returns the remaining list and whether anything was removed.
func (s *MemoryStore) RemoveSavedEvent(email, eventID, source string) ([]SavedEvent, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.Users.Get(email)
	if !ok {
		return nil, false, ErrUserNotFound
	}
	kept := make([]SavedEvent, 0, len(u.SavedEvents))
	for _, e := range u.SavedEvents {
		if e.EventID == eventID && (source == "" || e.Source == source) {
			continue
		}
		kept = append(kept, e)
	}
	if len(kept) == len(u.SavedEvents) {
		return u.SavedEvents, false, nil
	}
	s.Users.Update(email, func(u *User) {
		u.SavedEvents = kept
		u.UpdatedAt = s.now()
	})
	return kept, true, nil
}

// SavedEventDetails joins the user's saved list with the event tables.
func (s *MemoryStore) SavedEventDetails(email string) ([]SavedEventDetail, error) {
	u, ok := s.Users.Get(email)
	if !ok {
		return nil, ErrUserNotFound
	}
	out := make([]SavedEventDetail, 0, len(u.SavedEvents))
	for _, e := range u.SavedEvents {
		d := SavedEventDetail{EventID: e.EventID, Source: e.Source}
		if e.Source == SourceAI {
			if ev, ok := s.AIEvents.Get(e.EventID); ok {
				d.Event = ev
			}
		} else if ev, ok := s.Events.Get(e.EventID); ok {
			d.Event = ev
		}
		out = append(out, d)
	}
	return out, nil
}

// Snapshot returns the full state.
func (s *MemoryStore) Snapshot() any {
	return State{
		Users:    s.Users.Snapshot(),
		Events:   s.Events.Snapshot(),
		AIEvents: s.AIEvents.Snapshot(),
	}
}

// Counts reports how many users, Motion events and AI events are stored.
func (s *MemoryStore) Counts() map[string]int {
	return map[string]int{
		"users":    s.Users.Len(),
		"events":   s.Events.Len(),
		"aiEvents": s.AIEvents.Len(),
	}
}

// LoadState replaces the full state from a JSON State document.
func (s *MemoryStore) LoadState(data []byte) error {
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return err
	}
	return s.load(st)
}

// Reset clears all state and reloads the seed file, if one was given.
func (s *MemoryStore) Reset() {
	s.Users.Reset()
	s.Events.Reset()
	s.AIEvents.Reset()
	s.Clock.Reset()
	if s.seed != nil {
		// the seed was validated when it was first loaded
		_ = s.load(*s.seed)
	}
}

func (s *MemoryStore) load(st State) error {
	users := make(map[string]User, len(st.Users))
	for key, u := range st.Users {
		if u.Email == "" {
			u.Email = key
		}
		if u.UserID == "" {
			u.UserID = uuid.NewString()
		}
		if u.Password != "" {
			hash, salt, err := HashPassword(u.Password, u.PasswordSalt)
			if err != nil {
				return fmt.Errorf("user %s: %w", key, err)
			}
			u.PasswordHash, u.PasswordSalt, u.Password = hash, salt, ""
		}
		users[key] = u
	}
	events := make(map[string]Event, len(st.Events))
	for id, ev := range st.Events {
		if ev == nil {
			ev = Event{}
		}
		if _, ok := ev["eventId"]; !ok {
			ev["eventId"] = id
		}
		events[id] = ev
	}
	ai := make(map[string]AIEvent, len(st.AIEvents))
	for id, ev := range st.AIEvents {
		if ev.EventID == "" {
			ev.EventID = id
		}
		ai[id] = ev
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.Users.Load(users)
	s.Events.Load(events)
	s.AIEvents.Load(ai)
	return nil
}

// NormalizeEmail trims and lower-cases an address the way the saved-events
// and profile endpoints do.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func containsSaved(list []SavedEvent, eventID, source string) bool {
	for _, e := range list {
		if e.EventID == eventID && e.Source == source {
			return true
		}
	}
	return false
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
