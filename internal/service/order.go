package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rookgm/kopisort/internal/models"
	"go.uber.org/zap"
)

// OrderRepository is interface for interacting with order-related data
type OrderRepository interface {
	// CreateOrder assigns sequential id and inserts order
	CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error)
	// GetOrderByID returns order by id
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
	// GetOrdersByUserID returns user orders, newest first
	GetOrdersByUserID(ctx context.Context, userID uint64) ([]models.Order, error)
	// GetOrders returns all orders, newest first
	GetOrders(ctx context.Context) ([]models.Order, error)
	// GetOrdersForStats returns orders matching filter, newest first
	GetOrdersForStats(ctx context.Context, f models.StatsFilter) ([]models.Order, error)
	// UpdateOrderStatus updates order status
	UpdateOrderStatus(ctx context.Context, id string, status models.OrderStatus) error
	// UpdatePaymentStatus updates order payment status
	UpdatePaymentStatus(ctx context.Context, id string, status models.PaymentStatus) error
	// AssignMachine sets machine and status of order
	AssignMachine(ctx context.Context, id, machineID, machineName string, status models.OrderStatus) error
	// DeleteOrder deletes order with its batches, payments and sorting results
	DeleteOrder(ctx context.Context, id string) error
}

// OrderService implements OrderService interface
type OrderService struct {
	repo     OrderRepository
	tx       Transactor
	notifier Notifier
	cache    OrderCache
	logger   *zap.Logger
}

// NewOrderService creates new OrderService instance
func NewOrderService(repo OrderRepository, tx Transactor, notifier Notifier, cache OrderCache, logger *zap.Logger) *OrderService {
	return &OrderService{
		repo:     repo,
		tx:       tx,
		notifier: notifier,
		cache:    cache,
		logger:   logger,
	}
}

// Create creates pending unpaid order owned by principal
func (os *OrderService) Create(ctx context.Context, principal *models.TokenPayload, in models.OrderInput) (*models.Order, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	order := &models.Order{
		UserID:        principal.UserID,
		UserName:      principal.UserName,
		PackageName:   strings.TrimSpace(in.PackageName),
		Weight:        in.Weight,
		Price:         *in.Price,
		Status:        models.OrderStatusPending,
		PaymentStatus: models.PaymentStatusUnpaid,
		Customer:      in.Customer,
	}

	var created *models.Order
	err := os.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		created, err = os.repo.CreateOrder(ctx, order)
		return orConflict(err, "order already exists")
	})
	if err != nil {
		return nil, err
	}

	os.logger.Info("order created",
		zap.String("order_id", created.ID),
		zap.Uint64("user_id", created.UserID),
		zap.Float64("weight", created.Weight))

	return created, nil
}

// Get returns order visible to principal
func (os *OrderService) Get(ctx context.Context, principal *models.TokenPayload, id string) (*models.Order, error) {
	order, err := os.cache.Get(ctx, id)
	if err != nil {
		err = os.tx.WithinTx(ctx, func(ctx context.Context) error {
			var err error
			order, err = os.repo.GetOrderByID(ctx, id)
			return orNotFound(err, "order", id)
		})
		if err != nil {
			return nil, err
		}
		if err := os.cache.Set(ctx, order); err != nil {
			os.logger.Warn("failed to cache order", zap.String("order_id", id), zap.Error(err))
		}
	}

	if !principal.CanAccess(order.UserID) {
		return nil, models.NewAccessDeniedError("order belongs to another user")
	}

	return order, nil
}

// List returns all orders for operator and own orders for customer
func (os *OrderService) List(ctx context.Context, principal *models.TokenPayload) ([]models.Order, error) {
	var orders []models.Order
	err := os.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if principal.IsAdmin() {
			orders, err = os.repo.GetOrders(ctx)
		} else {
			orders, err = os.repo.GetOrdersByUserID(ctx, principal.UserID)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	return orders, nil
}

// Transition sets order status and optionally payment status.
// Repeating the current status is a no-op write, other moves follow the transition table.
func (os *OrderService) Transition(ctx context.Context, id string, status models.OrderStatus, paymentStatus *models.PaymentStatus) (*models.Order, error) {
	if paymentStatus != nil && !paymentStatus.IsValid() {
		return nil, models.NewValidationError("paymentStatus", fmt.Sprintf("unknown payment status %q", *paymentStatus))
	}

	var (
		order   *models.Order
		changed bool
	)
	err := os.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		order, err = os.repo.GetOrderByID(ctx, id)
		if err != nil {
			return orNotFound(err, "order", id)
		}

		if err := order.CheckTransition(status); err != nil {
			return err
		}

		if err := os.repo.UpdateOrderStatus(ctx, id, status); err != nil {
			return orNotFound(err, "order", id)
		}
		changed = order.Status != status
		order.Status = status

		if paymentStatus != nil {
			if err := os.repo.UpdatePaymentStatus(ctx, id, *paymentStatus); err != nil {
				return orNotFound(err, "order", id)
			}
			order.PaymentStatus = *paymentStatus
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	os.invalidate(ctx, id)

	if changed {
		os.notifier.Notify(ctx, statusNotice(order))
	}

	return order, nil
}

// AssignMachine assigns sorting machine and starts processing of a pending order
func (os *OrderService) AssignMachine(ctx context.Context, id, machineID, machineName string) (*models.Order, error) {
	machineID, machineName = strings.TrimSpace(machineID), strings.TrimSpace(machineName)
	if machineID == "" {
		return nil, models.NewValidationError("machineId", "is required")
	}
	if machineName == "" {
		return nil, models.NewValidationError("machineName", "is required")
	}

	var order *models.Order
	err := os.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		order, err = os.repo.GetOrderByID(ctx, id)
		if err != nil {
			return orNotFound(err, "order", id)
		}

		if order.Status.IsTerminal() {
			return models.NewConflictError(fmt.Sprintf("can not assign machine to %s order", order.Status))
		}

		// machine assignment means work has begun
		status := order.Status
		if status == models.OrderStatusPending {
			status = models.OrderStatusProcessing
		}

		if err := os.repo.AssignMachine(ctx, id, machineID, machineName, status); err != nil {
			return orNotFound(err, "order", id)
		}
		order.MachineID, order.MachineName, order.Status = machineID, machineName, status

		return nil
	})
	if err != nil {
		return nil, err
	}

	os.invalidate(ctx, id)

	os.notifier.Notify(ctx, models.Notice{
		UserID:  order.UserID,
		Title:   "Machine assigned",
		Message: fmt.Sprintf("Order %s is being sorted on machine %s (%s).", order.ID, order.MachineName, order.MachineID),
		Type:    string(models.NotificationInfo),
		Link:    orderLink(order.ID),
		Event:   models.EventMachineAssigned,
		OrderID: order.ID,
	})

	return order, nil
}

// Cancel cancels order unless payment is pending or verified or order is completed
func (os *OrderService) Cancel(ctx context.Context, principal *models.TokenPayload, id string) (*models.Order, error) {
	var order *models.Order
	err := os.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		order, err = os.repo.GetOrderByID(ctx, id)
		if err != nil {
			return orNotFound(err, "order", id)
		}

		if !principal.CanAccess(order.UserID) {
			return models.NewAccessDeniedError("order belongs to another user")
		}

		if err := order.CheckCancel(); err != nil {
			return err
		}

		if err := os.repo.UpdateOrderStatus(ctx, id, models.OrderStatusCancelled); err != nil {
			return orNotFound(err, "order", id)
		}
		order.Status = models.OrderStatusCancelled

		return nil
	})
	if err != nil {
		return nil, err
	}

	os.invalidate(ctx, id)
	os.notifier.Notify(ctx, statusNotice(order))

	return order, nil
}

// Delete deletes order together with batches, payments and sorting results
func (os *OrderService) Delete(ctx context.Context, principal *models.TokenPayload, id string) error {
	err := os.tx.WithinTx(ctx, func(ctx context.Context) error {
		order, err := os.repo.GetOrderByID(ctx, id)
		if err != nil {
			return orNotFound(err, "order", id)
		}

		if !principal.CanAccess(order.UserID) {
			return models.NewAccessDeniedError("order belongs to another user")
		}

		return orNotFound(os.repo.DeleteOrder(ctx, id), "order", id)
	})
	if err != nil {
		return err
	}

	os.invalidate(ctx, id)
	os.logger.Info("order deleted", zap.String("order_id", id), zap.Uint64("by", principal.UserID))

	return nil
}

func (os *OrderService) invalidate(ctx context.Context, id string) {
	if err := os.cache.Invalidate(ctx, id); err != nil {
		os.logger.Warn("failed to invalidate cached order", zap.String("order_id", id), zap.Error(err))
	}
}

func statusNotice(order *models.Order) models.Notice {
	nt := models.NotificationInfo
	switch order.Status {
	case models.OrderStatusCompleted:
		nt = models.NotificationSuccess
	case models.OrderStatusCancelled:
		nt = models.NotificationWarning
	}

	return models.Notice{
		UserID:  order.UserID,
		Title:   "Order status updated",
		Message: fmt.Sprintf("Order %s is now %s.", order.ID, order.Status),
		Type:    string(nt),
		Link:    orderLink(order.ID),
		Event:   models.EventOrderStatusChanged,
		OrderID: order.ID,
	}
}
