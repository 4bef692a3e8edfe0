package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rookgm/kopisort/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

//go:generate mockgen -destination=mocks/mocks.go -package=mocks github.com/rookgm/kopisort/internal/handler/http OrderService,BatchService,SortingService,PaymentService,TokenVerifier

type OrderService interface {
	// Create creates pending unpaid order owned by principal
	Create(ctx context.Context, principal *models.TokenPayload, in models.OrderInput) (*models.Order, error)
	// Get returns order visible to principal
	Get(ctx context.Context, principal *models.TokenPayload, id string) (*models.Order, error)
	// List returns orders visible to principal
	List(ctx context.Context, principal *models.TokenPayload) ([]models.Order, error)
	// Transition moves order to status
	Transition(ctx context.Context, id string, status models.OrderStatus, paymentStatus *models.PaymentStatus) (*models.Order, error)
	// AssignMachine assigns sorting machine to order
	AssignMachine(ctx context.Context, id, machineID, machineName string) (*models.Order, error)
	// Cancel cancels order
	Cancel(ctx context.Context, principal *models.TokenPayload, id string) (*models.Order, error)
	// Delete removes order with dependents
	Delete(ctx context.Context, principal *models.TokenPayload, id string) error
}

// OrderHandler represents HTTP handler for order-related requests
type OrderHandler struct {
	svc    OrderService
	logger *zap.Logger
}

// NewOrderHandler creates new OrderHandler instance
func NewOrderHandler(svc OrderService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{svc: svc, logger: logger}
}

type createOrderRequest struct {
	PackageName   string           `json:"packageName"`
	Weight        float64          `json:"weight"`
	Price         *decimal.Decimal `json:"price"`
	CustomerName  string           `json:"customerName"`
	CustomerPhone string           `json:"customerPhone"`
	CustomerEmail string           `json:"customerEmail"`
	Address       string           `json:"address"`
	CoffeeType    string           `json:"coffeeType"`
	DeliveryDate  string           `json:"deliveryDate"`
	Notes         string           `json:"notes"`
}

type orderResponse struct {
	ID            string          `json:"id"`
	UserID        uint64          `json:"userId"`
	UserName      string          `json:"userName,omitempty"`
	PackageName   string          `json:"packageName"`
	Weight        float64         `json:"weight"`
	Price         decimal.Decimal `json:"price"`
	Status        string          `json:"status"`
	PaymentStatus string          `json:"paymentStatus"`
	MachineID     string          `json:"machineId,omitempty"`
	MachineName   string          `json:"machineName,omitempty"`
	CustomerName  string          `json:"customerName,omitempty"`
	CustomerPhone string          `json:"customerPhone,omitempty"`
	CustomerEmail string          `json:"customerEmail,omitempty"`
	Address       string          `json:"address,omitempty"`
	CoffeeType    string          `json:"coffeeType,omitempty"`
	DeliveryDate  string          `json:"deliveryDate,omitempty"`
	Notes         string          `json:"notes,omitempty"`
	CreatedAt     string          `json:"createdAt"`
	UpdatedAt     string          `json:"updatedAt"`
}

func newOrderResponse(o *models.Order) orderResponse {
	resp := orderResponse{
		ID:            o.ID,
		UserID:        o.UserID,
		UserName:      o.UserName,
		PackageName:   o.PackageName,
		Weight:        o.Weight,
		Price:         o.Price,
		Status:        string(o.Status),
		PaymentStatus: string(o.PaymentStatus),
		MachineID:     o.MachineID,
		MachineName:   o.MachineName,
		CustomerName:  o.Customer.Name,
		CustomerPhone: o.Customer.Phone,
		CustomerEmail: o.Customer.Email,
		Address:       o.Customer.Address,
		CoffeeType:    o.Customer.CoffeeType,
		Notes:         o.Customer.Notes,
		CreatedAt:     o.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     o.UpdatedAt.Format(time.RFC3339),
	}
	if o.Customer.DeliveryDate != nil {
		resp.DeliveryDate = o.Customer.DeliveryDate.Format(dateLayout)
	}
	return resp
}

// CreateOrder creates user order
// 201 — заказ создан;
// 400 — не хватает обязательных полей;
// 401 — пользователь не аутентифицирован;
// 500 — внутренняя ошибка сервера.
func (oh *OrderHandler) CreateOrder() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, ok := getAuthPayload(r.Context(), authPayloadKey)
		if !ok {
			respondFail(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		var req createOrderRequest
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, oh.logger, err, http.StatusConflict)
			return
		}

		in := models.OrderInput{
			PackageName: req.PackageName,
			Weight:      req.Weight,
			Price:       req.Price,
			Customer: models.Customer{
				Name:       req.CustomerName,
				Phone:      req.CustomerPhone,
				Email:      req.CustomerEmail,
				Address:    req.Address,
				CoffeeType: req.CoffeeType,
				Notes:      req.Notes,
			},
		}
		if req.DeliveryDate != "" {
			date, err := time.Parse(dateLayout, req.DeliveryDate)
			if err != nil {
				respondFail(w, http.StatusBadRequest, "deliveryDate: must be YYYY-MM-DD")
				return
			}
			in.Customer.DeliveryDate = &date
		}

		order, err := oh.svc.Create(r.Context(), payload, in)
		if err != nil {
			respondError(w, oh.logger, err, http.StatusConflict)
			return
		}

		respondOK(w, http.StatusCreated, "order created", newOrderResponse(order))
	}
}

// ListOrders returns all orders for admin and own orders for user
func (oh *OrderHandler) ListOrders() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, ok := getAuthPayload(r.Context(), authPayloadKey)
		if !ok {
			respondFail(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		orders, err := oh.svc.List(r.Context(), payload)
		if err != nil {
			respondError(w, oh.logger, err, http.StatusConflict)
			return
		}

		resp := make([]orderResponse, 0, len(orders))
		for i := range orders {
			resp = append(resp, newOrderResponse(&orders[i]))
		}

		respondOK(w, http.StatusOK, "", resp)
	}
}

// GetOrder returns order by id
func (oh *OrderHandler) GetOrder() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, ok := getAuthPayload(r.Context(), authPayloadKey)
		if !ok {
			respondFail(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		order, err := oh.svc.Get(r.Context(), payload, chi.URLParam(r, "id"))
		if err != nil {
			respondError(w, oh.logger, err, http.StatusConflict)
			return
		}

		respondOK(w, http.StatusOK, "", newOrderResponse(order))
	}
}

// DeleteOrder removes order with its batches, results and payments
func (oh *OrderHandler) DeleteOrder() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, ok := getAuthPayload(r.Context(), authPayloadKey)
		if !ok {
			respondFail(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		if err := oh.svc.Delete(r.Context(), payload, chi.URLParam(r, "id")); err != nil {
			respondError(w, oh.logger, err, http.StatusConflict)
			return
		}

		respondOK(w, http.StatusOK, "order deleted", nil)
	}
}

type assignMachineRequest struct {
	MachineID   string `json:"machineId"`
	MachineName string `json:"machineName"`
}

// AssignMachine assigns sorting machine to order
// 200 — машина назначена;
// 400 — не хватает обязательных полей;
// 404 — заказ не найден.
func (oh *OrderHandler) AssignMachine() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req assignMachineRequest
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, oh.logger, err, http.StatusConflict)
			return
		}

		order, err := oh.svc.AssignMachine(r.Context(), chi.URLParam(r, "id"), req.MachineID, req.MachineName)
		if err != nil {
			respondError(w, oh.logger, err, http.StatusConflict)
			return
		}

		respondOK(w, http.StatusOK, "machine assigned", newOrderResponse(order))
	}
}

type updateStatusRequest struct {
	Status        string  `json:"status"`
	PaymentStatus *string `json:"paymentStatus"`
}

// UpdateStatus moves order through its lifecycle
func (oh *OrderHandler) UpdateStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req updateStatusRequest
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, oh.logger, err, http.StatusConflict)
			return
		}

		var paymentStatus *models.PaymentStatus
		if req.PaymentStatus != nil {
			ps := models.PaymentStatus(*req.PaymentStatus)
			paymentStatus = &ps
		}

		order, err := oh.svc.Transition(r.Context(), chi.URLParam(r, "id"), models.OrderStatus(req.Status), paymentStatus)
		if err != nil {
			respondError(w, oh.logger, err, http.StatusConflict)
			return
		}

		respondOK(w, http.StatusOK, "order status updated", newOrderResponse(order))
	}
}

// CancelOrder cancels order
// 200 — заказ отменён;
// 400 — заказ нельзя отменить;
// 403 — заказ принадлежит другому пользователю.
func (oh *OrderHandler) CancelOrder() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, ok := getAuthPayload(r.Context(), authPayloadKey)
		if !ok {
			respondFail(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		order, err := oh.svc.Cancel(r.Context(), payload, chi.URLParam(r, "id"))
		if err != nil {
			respondError(w, oh.logger, err, http.StatusBadRequest)
			return
		}

		respondOK(w, http.StatusOK, "order cancelled", newOrderResponse(order))
	}
}
