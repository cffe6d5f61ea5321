package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/smartport-kiosk/smartport/internal/device"
	"github.com/smartport-kiosk/smartport/internal/obs"
	"github.com/smartport-kiosk/smartport/internal/smartport/store"
	"github.com/smartport-kiosk/smartport/internal/smartport/types"
)

// EnrollmentService binds a tag and a face to a passenger. The two steps
// form a saga: a failed face step undoes the tag step.
type EnrollmentService struct {
	store  store.PassengerStore
	reader device.TagReader
	camera device.FaceCapturer
	codec  types.EmbeddingCodec
	logger *log.Logger
}

func NewEnrollmentService(
	s store.PassengerStore,
	reader device.TagReader,
	camera device.FaceCapturer,
	codec types.EmbeddingCodec,
	logger *log.Logger,
) *EnrollmentService {
	return &EnrollmentService{store: s, reader: reader, camera: camera, codec: codec, logger: logger}
}

// AssignTag binds tag to the passenger, reading it from the reader when
// empty. Returns the normalized tag code that was stored.
func (s *EnrollmentService) AssignTag(ctx context.Context, passengerID int64, tag string) (string, error) {
	if _, err := s.findPassenger(ctx, passengerID); err != nil {
		return "", err
	}

	tag, err := resolveTag(ctx, s.reader, tag)
	if err != nil {
		obs.Enrollments.WithLabelValues("tag", "no_tag").Inc()
		return "", err
	}

	if err := s.store.SetPassengerTag(ctx, passengerID, tag); err != nil {
		obs.Enrollments.WithLabelValues("tag", "rejected").Inc()
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrPassengerNotFound
		}
		return "", fmt.Errorf("assign tag %s: %w", tag, err)
	}

	obs.Enrollments.WithLabelValues("tag", "ok").Inc()
	s.logger.Printf("enroll tag passenger=%d tag=%s", passengerID, tag)
	return tag, nil
}

// AssignFace captures the passenger's face and stores the embedding,
// which moves them to VALIDATED. On capture or storage failure the tag
// assigned in the previous step is cleared.
func (s *EnrollmentService) AssignFace(ctx context.Context, passengerID int64) error {
	p, err := s.findPassenger(ctx, passengerID)
	if err != nil {
		return err
	}
	if !p.HasTag() || (p.State != types.StateEnrolledTag && p.State != types.StateValidated) {
		return fmt.Errorf("assign face in state %s: %w", p.State, store.ErrInvalidState)
	}

	emb, err := s.camera.Capture(ctx)
	if err == nil {
		err = s.codec.Validate(emb)
	}
	if err != nil {
		obs.Enrollments.WithLabelValues("face", "no_face").Inc()
		s.logger.Printf("enroll face passenger=%d capture failed: %v", passengerID, err)
		return s.compensate(ctx, p, fmt.Errorf("%w: %w", ErrNoFaceDetected, err))
	}

	if err := s.store.SetPassengerEmbedding(ctx, passengerID, emb); err != nil {
		obs.Enrollments.WithLabelValues("face", "store_error").Inc()
		s.logger.Printf("enroll face passenger=%d store failed: %v", passengerID, err)
		return s.compensate(ctx, p, fmt.Errorf("%w: %w", ErrEnrollmentStore, err))
	}

	obs.Enrollments.WithLabelValues("face", "ok").Inc()
	s.logger.Printf("enroll face passenger=%d state=%s", passengerID, types.StateValidated)
	return nil
}

// Enroll runs AssignTag and AssignFace back to back.
func (s *EnrollmentService) Enroll(ctx context.Context, passengerID int64, tag string) (string, error) {
	tag, err := s.AssignTag(ctx, passengerID, tag)
	if err != nil {
		return "", err
	}
	if err := s.AssignFace(ctx, passengerID); err != nil {
		return "", err
	}
	return tag, nil
}

// compensate clears the tag of a passenger that was mid-enrollment and
// returns cause. Already validated passengers keep their enrollment. A
// failed clear is logged and joined onto cause.
func (s *EnrollmentService) compensate(ctx context.Context, p types.Passenger, cause error) error {
	if p.State != types.StateEnrolledTag {
		return cause
	}
	passengerID := p.ID
	// The request context may already be done; the undo must still run.
	undoCtx := context.WithoutCancel(ctx)
	if err := s.store.ClearPassengerTag(undoCtx, passengerID); err != nil {
		s.logger.Printf("enroll compensation passenger=%d clear tag failed: %v", passengerID, err)
		return errors.Join(cause, fmt.Errorf("clear tag: %w", err))
	}
	s.logger.Printf("enroll compensation passenger=%d tag cleared", passengerID)
	return cause
}

func (s *EnrollmentService) findPassenger(ctx context.Context, id int64) (types.Passenger, error) {
	p, err := s.store.FindPassengerByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return types.Passenger{}, ErrPassengerNotFound
	}
	if err != nil {
		return types.Passenger{}, err
	}
	return p, nil
}

// resolveTag normalizes a supplied tag or reads one from the reader.
func resolveTag(ctx context.Context, reader device.TagReader, tag string) (string, error) {
	if tag = types.NormalizeTagCode(tag); tag != "" {
		return tag, nil
	}
	if reader == nil {
		return "", ErrNoTagDetected
	}
	tag, err := reader.ReadTag(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNoTagDetected, err)
	}
	if tag == "" {
		return "", ErrNoTagDetected
	}
	return tag, nil
}
