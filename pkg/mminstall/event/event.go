// Package event defines the one-way notifications an install run emits:
// phase changes, detail text, overall progress and leveled alerts.
package event

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Type discriminates events.
type Type string

const (
	TypeChangePhase    Type = "changePhase"
	TypeChangeDetail   Type = "changeDetail"
	TypeUpdateProgress Type = "updateProgress"
	TypeAddAlert       Type = "addAlert"
)

// Phase is a user-facing stage of the run.
type Phase string

const (
	PhasePrepareWorkspace  Phase = "prepareWorkspace"
	PhaseDownloadModLoader Phase = "downloadModLoader"
	PhaseDownloadMods      Phase = "downloadMods"
	PhaseDownloadResources Phase = "downloadResources"
	PhaseAddProfile        Phase = "addProfile"
	PhaseLaunchModLoader   Phase = "launchModLoader"
)

// Level is an alert severity.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
)

// Alert keys understood by presentation layers.
const (
	AlertFailedAddProfile      = "alertOnFailedAddProfile"
	AlertFailedLaunchModLoader = "alertOnFailedLaunchModLoader"
	AlertLaunchModLoader       = "alertOnLaunchModLoader"
)

// Event is a single notification. Only the fields belonging to Type are
// meaningful.
type Event struct {
	Type     Type
	Phase    Phase
	Detail   string
	Progress float64
	Level    Level
	Key      string
}

// ChangePhase announces that the run entered p.
func ChangePhase(p Phase) Event { return Event{Type: TypeChangePhase, Phase: p} }

// ChangeDetail describes the artifact currently being worked on.
func ChangeDetail(text string) Event { return Event{Type: TypeChangeDetail, Detail: text} }

// UpdateProgress reports the overall completed fraction in [0, 1].
func UpdateProgress(f float64) Event { return Event{Type: TypeUpdateProgress, Progress: f} }

// AddAlert raises a user-visible alert identified by a translation key.
func AddAlert(level Level, key string) Event {
	return Event{Type: TypeAddAlert, Level: level, Key: key}
}

func (e Event) String() string {
	switch e.Type {
	case TypeChangePhase:
		return fmt.Sprintf("phase %s", e.Phase)
	case TypeChangeDetail:
		return fmt.Sprintf("detail %q", e.Detail)
	case TypeUpdateProgress:
		return fmt.Sprintf("progress %.3f", e.Progress)
	case TypeAddAlert:
		return fmt.Sprintf("alert %s %s", e.Level, e.Key)
	default:
		return fmt.Sprintf("event %q", e.Type)
	}
}

type (
	phasePayload    struct{ Phase Phase `json:"phase"` }
	detailPayload   struct{ Detail string `json:"detail"` }
	progressPayload struct{ Progress float64 `json:"progress"` }
	alertPayload    struct {
		Level          Level  `json:"level"`
		TranslationKey string `json:"translationKey"`
	}
)

// MarshalJSON encodes the event as an object tagged by "type" carrying only
// the fields of that type.
func (e Event) MarshalJSON() ([]byte, error) {
	var payload any
	switch e.Type {
	case TypeChangePhase:
		payload = struct {
			Type Type `json:"type"`
			phasePayload
		}{e.Type, phasePayload{e.Phase}}
	case TypeChangeDetail:
		payload = struct {
			Type Type `json:"type"`
			detailPayload
		}{e.Type, detailPayload{e.Detail}}
	case TypeUpdateProgress:
		payload = struct {
			Type Type `json:"type"`
			progressPayload
		}{e.Type, progressPayload{e.Progress}}
	case TypeAddAlert:
		payload = struct {
			Type Type `json:"type"`
			alertPayload
		}{e.Type, alertPayload{e.Level, e.Key}}
	default:
		return nil, fmt.Errorf("event: unknown type %q", e.Type)
	}
	return json.Marshal(payload)
}

// UnmarshalJSON decodes the tagged form written by MarshalJSON.
func (e *Event) UnmarshalJSON(data []byte) error {
	var wire struct {
		Type           Type    `json:"type"`
		Phase          Phase   `json:"phase"`
		Detail         string  `json:"detail"`
		Progress       float64 `json:"progress"`
		Level          Level   `json:"level"`
		TranslationKey string  `json:"translationKey"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	switch wire.Type {
	case TypeChangePhase, TypeChangeDetail, TypeUpdateProgress, TypeAddAlert:
	default:
		return fmt.Errorf("event: unknown type %q", wire.Type)
	}
	*e = Event{
		Type:     wire.Type,
		Phase:    wire.Phase,
		Detail:   wire.Detail,
		Progress: wire.Progress,
		Level:    wire.Level,
		Key:      wire.TranslationKey,
	}
	return nil
}

// Emitter receives events in emission order. An error means the event
// could not be delivered; the run logs it and carries on.
type Emitter interface {
	Emit(Event) error
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(Event) error

// Emit calls f(e).
func (f EmitterFunc) Emit(e Event) error { return f(e) }

// Discard drops every event.
var Discard Emitter = EmitterFunc(func(Event) error { return nil })

// Multi delivers each event to every emitter, returning all failures joined.
func Multi(emitters ...Emitter) Emitter {
	return EmitterFunc(func(e Event) error {
		var errs []error
		for _, em := range emitters {
			if err := em.Emit(e); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}
