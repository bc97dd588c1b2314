package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/atelierworks/atelier-backend/internal/consultations"
	"github.com/atelierworks/atelier-backend/internal/timeline"
	"github.com/atelierworks/atelier-backend/pkg/db/models"
	"github.com/atelierworks/atelier-backend/pkg/enums"
	pkgerrors "github.com/atelierworks/atelier-backend/pkg/errors"
	"github.com/atelierworks/atelier-backend/pkg/outbox"
	"github.com/atelierworks/atelier-backend/pkg/types"
)

func (s *service) RequestConsultation(ctx context.Context, input ConsultationRequestInput) (*models.Consultation, error) {
	var requested *models.Consultation
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, party, err := s.lockOrder(ctx, repo, input.OrderID, input.ActorID)
		if err != nil {
			return err
		}
		if order.Status.IsTerminal() {
			return pkgerrors.NewReason(pkgerrors.ReasonAlreadyTerminal, "order already resolved")
		}

		consultation, err := s.consultations.Request(ctx, tx, consultations.RequestInput{
			OrderID:     order.ID,
			RequestedBy: party,
			TimeoutAt:   input.TimeoutAt,
		})
		if err != nil {
			return err
		}

		if err := s.recordConsultationEvent(ctx, tx, order, consultation, input.ActorID, party,
			enums.TimelineConsultationRequested, "consultation requested"); err != nil {
			return err
		}
		requested = consultation
		return nil
	})
	if err != nil {
		return nil, err
	}
	return requested, nil
}

func (s *service) StartConsultation(ctx context.Context, orderID, actorID uuid.UUID) (*models.Consultation, error) {
	var started *models.Consultation
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, party, err := s.lockOrder(ctx, repo, orderID, actorID)
		if err != nil {
			return err
		}

		consultation, transitioned, err := s.consultations.Start(ctx, tx, order.ID)
		if err != nil {
			return err
		}
		// Starting twice is a no-op; only the first start leaves a trace.
		if transitioned {
			if err := s.recordConsultationEvent(ctx, tx, order, consultation, actorID, party,
				enums.TimelineConsultationStarted, "consultation started"); err != nil {
				return err
			}
		}
		started = consultation
		return nil
	})
	if err != nil {
		return nil, err
	}
	return started, nil
}

func (s *service) CompleteConsultation(ctx context.Context, orderID, actorID uuid.UUID) (*models.Consultation, error) {
	var completed *models.Consultation
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, party, err := s.lockOrder(ctx, repo, orderID, actorID)
		if err != nil {
			return err
		}

		consultation, err := s.consultations.Complete(ctx, tx, order.ID)
		if err != nil {
			return err
		}

		if err := s.recordConsultationEvent(ctx, tx, order, consultation, actorID, party,
			enums.TimelineConsultationCompleted, "consultation completed"); err != nil {
			return err
		}
		completed = consultation
		return nil
	})
	if err != nil {
		return nil, err
	}
	return completed, nil
}

// WaiveConsultation marks the order's consultation requirement as waived and
// terminates any open consultation. Either party may waive, whether or not a
// consultation was ever requested.
func (s *service) WaiveConsultation(ctx context.Context, orderID, actorID uuid.UUID) (*models.ProductionOrder, error) {
	var waived *models.ProductionOrder
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, party, err := s.lockOrder(ctx, repo, orderID, actorID)
		if err != nil {
			return err
		}
		if order.Status.IsTerminal() {
			return pkgerrors.NewReason(pkgerrors.ReasonAlreadyTerminal, "order already resolved")
		}

		consultation, err := s.consultations.Waive(ctx, tx, order.ID)
		if err != nil {
			return err
		}

		if !order.ConsultationWaived {
			if err := repo.Update(ctx, order.ID, order.Version, map[string]any{
				"consultation_waived": true,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist waiver")
			}
			order.ConsultationWaived = true
			order.Version++
		}

		if err := s.recordConsultationEvent(ctx, tx, order, consultation, actorID, party,
			enums.TimelineConsultationWaived, "consultation requirement waived"); err != nil {
			return err
		}
		waived = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return waived, nil
}

func (s *service) recordConsultationEvent(
	ctx context.Context,
	tx *gorm.DB,
	order *models.ProductionOrder,
	consultation *models.Consultation,
	actorID uuid.UUID,
	party enums.Party,
	eventType enums.TimelineEventType,
	description string,
) error {
	metadata := types.JSONMap{}
	data := map[string]any{"order_id": order.ID}
	aggregateID := order.ID
	if consultation != nil {
		metadata["consultation_id"] = consultation.ID.String()
		metadata["status"] = string(consultation.Status)
		data["consultation_id"] = consultation.ID
		data["status"] = consultation.Status
		aggregateID = consultation.ID
	}

	if _, err := s.timeline.Record(ctx, tx, timeline.RecordEventInput{
		OrderID:     order.ID,
		EventType:   eventType,
		Description: description,
		Metadata:    metadata,
	}); err != nil {
		return err
	}

	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventConsultationStateChanged,
		AggregateType: enums.AggregateConsultation,
		AggregateID:   aggregateID,
		Version:       1,
		Actor:         actorRef(actorID, party),
		Data:          data,
	})
}

// ExpireDueConsultations sweeps open consultations past their timeout. Each
// order is handled in its own transaction under the order lock so a large
// batch cannot stall live traffic, and a single failure does not abort the
// sweep. Expiry leaves the order parked in pending_consultation.
func (s *service) ExpireDueConsultations(ctx context.Context, now time.Time, limit int) (int, error) {
	orderIDs, err := s.consultations.DueForExpiry(ctx, now, limit)
	if err != nil {
		return 0, err
	}

	expired := 0
	var errs error
	for _, orderID := range orderIDs {
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			order, err := repo.FindByIDForUpdate(ctx, orderID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
			}

			consultation, err := s.consultations.Expire(ctx, tx, order.ID, now)
			if err != nil {
				return err
			}
			if consultation == nil {
				return nil
			}

			expired++
			if _, err := s.timeline.Record(ctx, tx, timeline.RecordEventInput{
				OrderID:     order.ID,
				EventType:   enums.TimelineConsultationExpired,
				Description: "consultation timed out",
				Metadata:    types.JSONMap{"consultation_id": consultation.ID.String()},
			}); err != nil {
				return err
			}
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventConsultationStateChanged,
				AggregateType: enums.AggregateConsultation,
				AggregateID:   consultation.ID,
				Version:       1,
				Data: map[string]any{
					"order_id":        order.ID,
					"consultation_id": consultation.ID,
					"status":          consultation.Status,
				},
			})
		})
		if err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return expired, errs
}
