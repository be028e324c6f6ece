package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/bakeway/api/internal/domain"
	"github.com/bakeway/api/internal/repositories"
)

const (
	paymentIDPrefix          = "pay_"
	paymentEventUpdated      = "order.payment.updated"
	paymentGatewayActorID    = "payment-gateway"
	paymentProcessingComment = "payment confirmed"
)

// ErrPaymentInvalidInput signals malformed gateway input.
var ErrPaymentInvalidInput = errors.New("payment: invalid input")

// PaymentServiceDeps bundles collaborators for the payment service.
type PaymentServiceDeps struct {
	Orders     repositories.OrderRepository
	Tracking   repositories.TrackingRepository
	Payments   repositories.PaymentRecordRepository
	UnitOfWork repositories.UnitOfWork

	Clock       func() time.Time
	IDGenerator func() string
	Events      OrderEventPublisher
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type paymentService struct {
	orders     repositories.OrderRepository
	tracking   repositories.TrackingRepository
	payments   repositories.PaymentRecordRepository
	unitOfWork repositories.UnitOfWork

	clock  func() time.Time
	newID  func() string
	events OrderEventPublisher
	logger func(context.Context, string, map[string]any)
}

// NewPaymentService wires dependencies into a concrete PaymentService.
func NewPaymentService(deps PaymentServiceDeps) (PaymentService, error) {
	if deps.Orders == nil {
		return nil, errors.New("payment service: order repository is required")
	}
	if deps.Tracking == nil {
		return nil, errors.New("payment service: tracking repository is required")
	}
	if deps.Payments == nil {
		return nil, errors.New("payment service: payment record repository is required")
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &paymentService{
		orders:     deps.Orders,
		tracking:   deps.Tracking,
		payments:   deps.Payments,
		unitOfWork: unit,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		events: deps.Events,
		logger: logger,
	}, nil
}

// ApplyPaymentResult records a terminal gateway outcome and adjusts the order.
// Replayed gateway references return the already-updated order without side
// effects.
func (s *paymentService) ApplyPaymentResult(ctx context.Context, cmd ApplyPaymentResultCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrPaymentInvalidInput)
	}
	gatewayRef := strings.TrimSpace(cmd.GatewayRef)
	if gatewayRef == "" {
		return Order{}, fmt.Errorf("%w: gateway reference is required", ErrPaymentInvalidInput)
	}
	if cmd.Amount < 0 {
		return Order{}, fmt.Errorf("%w: amount must not be negative", ErrPaymentInvalidInput)
	}

	paymentStatus, err := outcomeToStatus(cmd.Outcome)
	if err != nil {
		return Order{}, err
	}

	now := s.clock()
	var (
		updated    Order
		prevStatus domain.OrderStatus
		replayed   bool
		advanced   bool
	)

	err = s.runInTx(ctx, func(txCtx context.Context) error {
		replayed = false
		advanced = false

		order, err := s.orders.FindByID(txCtx, orderID)
		if err != nil {
			return mapOrderRepositoryError(err)
		}

		if _, err := s.payments.FindByGatewayRef(txCtx, orderID, gatewayRef); err == nil {
			replayed = true
			updated = order
			return nil
		} else if !isNotFound(err) {
			return mapOrderRepositoryError(err)
		}

		prevStatus = order.Status
		order.PaymentStatus = paymentStatus
		order.UpdatedAt = now

		var entry *TrackingEntry
		if paymentStatus == domain.PaymentStatusPaid && order.Status == domain.OrderStatusSubmitted {
			order.Status = domain.OrderStatusProcessing
			advanced = true
			entry = &TrackingEntry{
				ID:        trackingIDPrefix + s.newID(),
				OrderID:   order.ID,
				Status:    order.Status,
				Notes:     paymentProcessingComment,
				ActorID:   paymentGatewayActorID,
				CreatedAt: now,
			}
		}

		record := PaymentRecord{
			ID:         paymentIDPrefix + s.newID(),
			OrderID:    order.ID,
			GatewayRef: gatewayRef,
			Amount:     cmd.Amount,
			Status:     paymentStatus,
			CreatedAt:  now,
		}

		if err := s.payments.Insert(txCtx, record); err != nil {
			return mapOrderRepositoryError(err)
		}
		if err := s.orders.Update(txCtx, order); err != nil {
			return mapOrderRepositoryError(err)
		}
		if entry != nil {
			if err := s.tracking.Append(txCtx, *entry); err != nil {
				return mapOrderRepositoryError(err)
			}
		}
		updated = order
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	if replayed {
		s.logger(ctx, "payment.result.replayed", map[string]any{
			"order":      updated.ID,
			"gatewayRef": gatewayRef,
		})
		return updated, nil
	}

	event := OrderEventMessage{
		EventID:       eventIDPrefix + s.newID(),
		Type:          paymentEventUpdated,
		OrderID:       updated.ID,
		OrderNumber:   updated.Number,
		OwnerID:       updated.OwnerID,
		Status:        string(updated.Status),
		PaymentStatus: string(updated.PaymentStatus),
		ActorID:       paymentGatewayActorID,
		OccurredAt:    now,
	}
	if advanced {
		event.PreviousStatus = string(prevStatus)
	}
	s.publishEvent(ctx, event)

	return updated, nil
}

func (s *paymentService) ListPayments(ctx context.Context, orderID string) ([]PaymentRecord, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, fmt.Errorf("%w: order id is required", ErrPaymentInvalidInput)
	}
	records, err := s.payments.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, mapOrderRepositoryError(err)
	}
	return records, nil
}

func (s *paymentService) runInTx(ctx context.Context, fn func(context.Context) error) error {
	if s.unitOfWork == nil {
		return fn(ctx)
	}
	return s.unitOfWork.RunInTx(ctx, fn)
}

func (s *paymentService) publishEvent(ctx context.Context, event OrderEventMessage) {
	if s.events == nil {
		return
	}
	if _, err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "order.event.publish.failed", map[string]any{
			"type":  event.Type,
			"order": event.OrderID,
			"error": err.Error(),
		})
	}
}

func outcomeToStatus(outcome PaymentOutcome) (domain.PaymentStatus, error) {
	switch outcome {
	case PaymentOutcomeSucceeded:
		return domain.PaymentStatusPaid, nil
	case PaymentOutcomeFailed:
		return domain.PaymentStatusFailed, nil
	case PaymentOutcomeRefunded:
		return domain.PaymentStatusRefunded, nil
	default:
		return "", fmt.Errorf("%w: unknown payment outcome %q", ErrPaymentInvalidInput, outcome)
	}
}

func isNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}
