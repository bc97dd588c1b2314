package orders

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/atelierworks/atelier-backend/internal/adjustments"
	"github.com/atelierworks/atelier-backend/internal/escrow"
	"github.com/atelierworks/atelier-backend/internal/timeline"
	"github.com/atelierworks/atelier-backend/pkg/db/models"
	"github.com/atelierworks/atelier-backend/pkg/enums"
	pkgerrors "github.com/atelierworks/atelier-backend/pkg/errors"
	"github.com/atelierworks/atelier-backend/pkg/outbox"
	"github.com/atelierworks/atelier-backend/pkg/types"
)

func (s *service) ProposeAdjustment(ctx context.Context, input ProposeAdjustmentInput) (*models.PriceAdjustment, error) {
	var proposed *models.PriceAdjustment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, party, err := s.lockOrder(ctx, repo, input.OrderID, input.ActorID)
		if err != nil {
			return err
		}

		adjustment, err := s.adjustments.Propose(ctx, tx, order, adjustments.ProposeInput{
			ProposedBy:         party,
			AdjustedPriceCents: input.AdjustedPriceCents,
			Justification:      input.Justification,
			ResponseDeadline:   input.ResponseDeadline,
		})
		if err != nil {
			return err
		}

		if _, err := s.timeline.Record(ctx, tx, timeline.RecordEventInput{
			OrderID:     order.ID,
			EventType:   enums.TimelineAdjustmentProposed,
			Description: fmt.Sprintf("%s proposed a new price of %s", party, types.FormatMajorUnits(adjustment.AdjustedPriceCents)),
			Metadata: types.JSONMap{
				"adjustment_id":        adjustment.ID.String(),
				"adjustment_type":      string(adjustment.AdjustmentType),
				"original_price_cents": adjustment.OriginalPriceCents,
				"adjusted_price_cents": adjustment.AdjustedPriceCents,
			},
		}); err != nil {
			return err
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventAdjustmentProposed,
			AggregateType: enums.AggregatePriceAdjustment,
			AggregateID:   adjustment.ID,
			Version:       1,
			Actor:         actorRef(input.ActorID, party),
			Data: map[string]any{
				"order_id":             order.ID,
				"adjustment_id":        adjustment.ID,
				"adjustment_type":      adjustment.AdjustmentType,
				"original_price_cents": adjustment.OriginalPriceCents,
				"adjusted_price_cents": adjustment.AdjustedPriceCents,
				"response_deadline":    adjustment.ResponseDeadline,
			},
		}); err != nil {
			return err
		}

		proposed = adjustment
		return nil
	})
	if err != nil {
		return nil, err
	}
	return proposed, nil
}

// ResolveAdjustment records the counterparty's decision. Approving an
// increase charges the difference before anything commits; if the top-up
// fails the whole resolution rolls back and the proposal stays pending.
// Either outcome consumes the order's single adjustment.
func (s *service) ResolveAdjustment(ctx context.Context, input ResolveAdjustmentInput) (*models.PriceAdjustment, error) {
	var resolved *models.PriceAdjustment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, party, err := s.lockOrder(ctx, repo, input.OrderID, input.ActorID)
		if err != nil {
			return err
		}
		if order.Status.IsTerminal() {
			return pkgerrors.NewReason(pkgerrors.ReasonAlreadyTerminal, "order already resolved")
		}

		decision := adjustments.DecisionReject
		if input.Approve {
			decision = adjustments.DecisionApprove
		}
		adjustment, err := s.adjustments.Resolve(ctx, tx, order, adjustments.ResolveInput{
			Actor:    party,
			Decision: decision,
		})
		if err != nil {
			return err
		}

		updates := map[string]any{"price_adjustment_used": true}
		eventType := enums.TimelineAdjustmentRejected
		description := fmt.Sprintf("%s rejected the price adjustment", party)

		if input.Approve {
			hold, err := s.escrow.Get(ctx, order.ID)
			if err != nil {
				return err
			}
			if delta := adjustment.AdjustedPriceCents - hold.HeldCents(); delta > 0 {
				if _, err := s.escrow.TopUp(ctx, tx, escrow.ChargeInput{
					OrderID:     order.ID,
					CustomerID:  input.PaymentCustomerID,
					SourceID:    input.PaymentSourceID,
					AmountCents: delta,
					Note:        fmt.Sprintf("price adjustment top-up for order %s", order.ID),
				}); err != nil {
					return err
				}
				if _, err := s.timeline.Record(ctx, tx, timeline.RecordEventInput{
					OrderID:     order.ID,
					EventType:   enums.TimelineEscrowToppedUp,
					Description: fmt.Sprintf("escrow topped up by %s", types.FormatMajorUnits(delta)),
					Metadata:    types.JSONMap{"amount_cents": delta},
				}); err != nil {
					return err
				}
			}
			updates["final_price_cents"] = adjustment.AdjustedPriceCents
			eventType = enums.TimelineAdjustmentApproved
			description = fmt.Sprintf("%s approved the new price of %s", party, types.FormatMajorUnits(adjustment.AdjustedPriceCents))
		}

		if err := repo.Update(ctx, order.ID, order.Version, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist adjustment outcome")
		}
		order.PriceAdjustmentUsed = true
		order.Version++
		if input.Approve {
			order.FinalPriceCents = adjustment.AdjustedPriceCents
		}

		if _, err := s.timeline.Record(ctx, tx, timeline.RecordEventInput{
			OrderID:     order.ID,
			EventType:   eventType,
			Description: description,
			Metadata: types.JSONMap{
				"adjustment_id":        adjustment.ID.String(),
				"adjusted_price_cents": adjustment.AdjustedPriceCents,
			},
		}); err != nil {
			return err
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventAdjustmentResolved,
			AggregateType: enums.AggregatePriceAdjustment,
			AggregateID:   adjustment.ID,
			Version:       1,
			Actor:         actorRef(input.ActorID, party),
			Data: map[string]any{
				"order_id":          order.ID,
				"adjustment_id":     adjustment.ID,
				"status":            adjustment.Status,
				"final_price_cents": order.FinalPriceCents,
			},
		}); err != nil {
			return err
		}

		resolved = adjustment
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resolved, nil
}

// ExpireDueAdjustments sweeps pending proposals past their response deadline.
// Letting a proposal lapse consumes the order's single adjustment the same as
// an explicit rejection; the price stands and no further proposals are taken.
func (s *service) ExpireDueAdjustments(ctx context.Context, now time.Time, limit int) (int, error) {
	orderIDs, err := s.adjustments.DueForExpiry(ctx, now, limit)
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

			adjustment, err := s.adjustments.Expire(ctx, tx, order.ID, now)
			if err != nil {
				return err
			}
			if adjustment == nil {
				return nil
			}

			if err := repo.Update(ctx, order.ID, order.Version, map[string]any{
				"price_adjustment_used": true,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist adjustment expiry")
			}

			expired++
			if _, err := s.timeline.Record(ctx, tx, timeline.RecordEventInput{
				OrderID:     order.ID,
				EventType:   enums.TimelineAdjustmentExpired,
				Description: "price adjustment expired without a response",
				Metadata:    types.JSONMap{"adjustment_id": adjustment.ID.String()},
			}); err != nil {
				return err
			}
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventAdjustmentResolved,
				AggregateType: enums.AggregatePriceAdjustment,
				AggregateID:   adjustment.ID,
				Version:       1,
				Data: map[string]any{
					"order_id":      order.ID,
					"adjustment_id": adjustment.ID,
					"status":        adjustment.Status,
				},
			})
		})
		if err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return expired, errs
}
