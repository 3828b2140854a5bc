package targeting

import (
	"encoding/json"
	"errors"
	"io"

	"github.com/sirupsen/logrus"
)

// Service applies the targeting rule to scenes and reports what it did through
// the injected logger. It holds no per-request state and is safe for concurrent use.
type Service struct {
	log logrus.FieldLogger
}

// NewService constructs a Service. A nil logger discards all output.
func NewService(log logrus.FieldLogger) *Service {
	if log == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		log = discard
	}
	return &Service{log: log}
}

// WithLogger returns a Service that logs through log, typically a request-scoped entry.
func (s *Service) WithLogger(log logrus.FieldLogger) *Service {
	if log == nil {
		return s
	}
	return &Service{log: log}
}

// Predict selects the first enemy unit in scene and returns its identifier.
// A scene without an entity list fails with a *ValidationError; a scene with
// no enemy yields a Decision with a null target.
func (s *Service) Predict(scene Scene) (Decision, error) {
	if err := scene.Validate(); err != nil {
		return Decision{}, s.Reject(err)
	}

	s.log.WithField("entity_count", len(scene.Entities)).Info("received scene")

	target, ok := SelectTarget(scene.Entities)
	if !ok || !hasID(target.ID) {
		s.log.Info("no enemies found in scene")
		return Decision{}, nil
	}

	fields := logrus.Fields{"target_id": IDString(target.ID)}
	if isFalsyID(target.ID) {
		s.log.WithFields(fields).Warn("selected enemy has an empty identifier")
	} else {
		s.log.WithFields(fields).Info("enemy targeted")
	}
	return Decision{TargetID: target.ID}, nil
}

// Reject converts a decode or validation failure into a *ValidationError and logs it.
func (s *Service) Reject(err error) *ValidationError {
	verr := AsValidationError(err)
	if verr == nil {
		verr = newValidationError("empty payload", nil)
	}
	s.log.WithError(verr).Error("received invalid scene data")
	return verr
}

// DecodeScene reads a single JSON scene from r and validates it. Anything but
// whitespace after the scene object is rejected.
func DecodeScene(r io.Reader) (Scene, error) {
	var scene Scene
	dec := json.NewDecoder(r)
	if err := dec.Decode(&scene); err != nil {
		if errors.Is(err, io.EOF) {
			return Scene{}, newValidationError("empty payload", nil)
		}
		return Scene{}, newValidationError("malformed payload", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Scene{}, newValidationError("malformed payload: trailing data", err)
	}
	if err := scene.Validate(); err != nil {
		return Scene{}, err
	}
	return scene, nil
}
