package ingest

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aretw0/sagalens/pkg/domain"
	"github.com/mitchellh/mapstructure"
)

// Decode parses and validates a single JSON event.
func Decode(data []byte) (domain.Event, error) {
	var ev domain.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return domain.Event{}, fmt.Errorf("%w: %v", domain.ErrInvalidEvent, err)
	}
	if err := Validate(ev); err != nil {
		return domain.Event{}, err
	}
	return ev, nil
}

// Validate checks that an event has the fields its kind requires.
func Validate(ev domain.Event) error {
	switch ev.Kind {
	case domain.EventClientReady, domain.EventActionDispatched:
		return nil
	case domain.EventRootStarted,
		domain.EventEffectResolved,
		domain.EventEffectRejected,
		domain.EventEffectCancelled,
		domain.EventTaskSettled:
		if ev.EffectID == domain.NoParent {
			return fmt.Errorf("%w: %s requires effectId", domain.ErrInvalidEvent, ev.Kind)
		}
		return nil
	case domain.EventEffectTriggered:
		if ev.EffectID == domain.NoParent {
			return fmt.Errorf("%w: %s requires effectId", domain.ErrInvalidEvent, ev.Kind)
		}
		if ev.Effect == nil {
			return fmt.Errorf("%w: %s requires effect", domain.ErrInvalidEvent, ev.Kind)
		}
		return nil
	case "":
		return fmt.Errorf("%w: missing kind", domain.ErrInvalidEvent)
	}
	return fmt.Errorf("%w: %q", domain.ErrUnknownEvent, ev.Kind)
}

// DecodeEffect converts a loosely typed effect descriptor into a domain.Effect.
// Unknown keys are ignored. Fields of the wrong type are an error.
func DecodeEffect(raw map[string]any) (domain.Effect, error) {
	var effect domain.Effect
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &effect,
		TagName:          "mapstructure",
		WeaklyTypedInput: false,
	})
	if err != nil {
		return domain.Effect{}, err
	}
	if err := dec.Decode(raw); err != nil {
		return domain.Effect{}, fmt.Errorf("%w: effect descriptor: %v", domain.ErrInvalidEvent, err)
	}
	return effect, nil
}

// errorOf rebuilds the error carried by an event. Without a message the
// error is a generic failure so that rejections never carry a nil error.
func errorOf(ev domain.Event) error {
	msg := ev.Error
	if msg == "" {
		msg = "unknown error"
	}
	err := errors.New(msg)
	if ev.RaceLabel != "" {
		return &domain.RaceError{Label: ev.RaceLabel, Err: err}
	}
	return err
}
