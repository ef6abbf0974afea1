package main

import (
	"net/http"
	"strconv"
	"time"

	"bazaar/internal/notify"
	"bazaar/internal/store"

	"github.com/go-chi/chi/v5"
)

func orderIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
}

type OrderLinePayload struct {
	ListingID int64 `json:"listing_id" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"required,gt=0,lte=100"`
}

type CreateOrderPayload struct {
	Items           []OrderLinePayload `json:"items" validate:"required,min=1,max=50,dive"`
	ShippingName    string             `json:"shipping_name" validate:"required,max=100"`
	ShippingPhone   string             `json:"shipping_phone" validate:"required,phone"`
	ShippingAddress string             `json:"shipping_address" validate:"required,max=500"`
	PaymentMethod   string             `json:"payment_method" validate:"required,oneof=cash card"`
	ContactEmail    string             `json:"contact_email" validate:"omitempty,email"`
}

// createOrderHandler godoc
//
//	@Summary		Place an order
//	@Description	Decrements stock for every line and records the order in one transaction
//	@Tags			orders
//	@Accept			json
//	@Produce		json
//	@Security		ApiKeyAuth
//	@Param			payload	body		CreateOrderPayload	true	"Order lines and shipping"
//	@Success		201		{object}	store.OrderDetail
//	@Failure		409		{object}	error
//	@Router			/orders [post]
func (app *application) createOrderHandler(w http.ResponseWriter, r *http.Request) {
	var payload CreateOrderPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	lines := make([]store.OrderLine, 0, len(payload.Items))
	for _, it := range payload.Items {
		lines = append(lines, store.OrderLine{ListingID: it.ListingID, Quantity: it.Quantity})
	}

	user := getUserFromContext(r)
	ship := store.ShippingInfo{
		Name:    payload.ShippingName,
		Phone:   payload.ShippingPhone,
		Address: payload.ShippingAddress,
	}

	detail, err := app.store.Orders.Create(r.Context(), user.ID, lines, ship, payload.PaymentMethod, time.Now())
	if err != nil {
		app.storeErrorResponse(w, r, err)
		return
	}

	if payload.ContactEmail != "" {
		go app.sendOrderReceipt(user.Name, payload.ContactEmail, &detail.Order)
	}

	app.jsonResponse(w, http.StatusCreated, detail)
}

func (app *application) sendOrderReceipt(username, email string, o *store.Order) {
	vars := struct {
		Username    string
		OrderNumber string
		Total       string
	}{
		Username:    username,
		OrderNumber: o.OrderNumber,
		Total:       formatCents(o.TotalCents),
	}

	status, err := app.mailer.Send(notify.OrderReceiptTemplate, username, email, vars)
	if err != nil {
		app.logger.Errorw("order receipt email failed", "order", o.OrderNumber, "error", err)
		return
	}
	app.logger.Infow("order receipt sent", "order", o.OrderNumber, "status", status)
}

// getOrderHandler godoc
//
//	@Summary	Get one of my orders
//	@Tags		orders
//	@Produce	json
//	@Security	ApiKeyAuth
//	@Param		orderID	path		int	true	"Order ID"
//	@Success	200		{object}	store.OrderDetail
//	@Failure	404		{object}	error
//	@Router		/orders/{orderID} [get]
func (app *application) getOrderHandler(w http.ResponseWriter, r *http.Request) {
	id, err := orderIDParam(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	user := getUserFromContext(r)
	detail, err := app.store.Orders.GetDetailForUser(r.Context(), user.ID, id)
	if err != nil {
		app.storeErrorResponse(w, r, err)
		return
	}

	app.jsonResponse(w, http.StatusOK, detail)
}

// listMyOrdersHandler godoc
//
//	@Summary	List my orders
//	@Tags		orders
//	@Produce	json
//	@Security	ApiKeyAuth
//	@Param		status	query	string	false	"Filter by status"
//	@Param		limit	query	int		false	"Page size"
//	@Param		offset	query	int		false	"Offset"
//	@Success	200	{array}	store.Order
//	@Router		/orders [get]
func (app *application) listMyOrdersHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)

	status := r.URL.Query().Get("status")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	orders, err := app.store.Orders.ListByUser(r.Context(), user.ID, status, limit, offset)
	if err != nil {
		app.storeErrorResponse(w, r, err)
		return
	}

	app.jsonResponse(w, http.StatusOK, orders)
}

type UpdateOrderStatusPayload struct {
	Status string `json:"status" validate:"required,oneof=processing shipped delivered cancelled"`
}

// updateOrderStatusHandler godoc
//
//	@Summary		Advance an order
//	@Description	Admin-only; forward-only fulfillment, cancellation routes through the cancel rules
//	@Tags			orders
//	@Accept			json
//	@Produce		json
//	@Security		ApiKeyAuth
//	@Param			orderID	path		int							true	"Order ID"
//	@Param			payload	body		UpdateOrderStatusPayload	true	"Target status"
//	@Success		200		{object}	store.Order
//	@Failure		422		{object}	error
//	@Router			/orders/{orderID}/status [post]
func (app *application) updateOrderStatusHandler(w http.ResponseWriter, r *http.Request) {
	id, err := orderIDParam(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	var payload UpdateOrderStatusPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	user := getUserFromContext(r)
	if !isAdmin(user) {
		app.forbiddenResponse(w, r)
		return
	}

	o, err := app.store.Orders.UpdateStatus(r.Context(), id, payload.Status)
	if err != nil {
		app.storeErrorResponse(w, r, err)
		return
	}

	app.jsonResponse(w, http.StatusOK, o)
}

// markOrderPaidHandler godoc
//
//	@Summary		Record an order payment
//	@Description	Admin flags the order as paid after collecting out of band
//	@Tags			orders
//	@Produce		json
//	@Security		ApiKeyAuth
//	@Param			orderID	path		int	true	"Order ID"
//	@Success		200		{object}	store.Order
//	@Failure		422		{object}	error
//	@Router			/orders/{orderID}/payment [post]
func (app *application) markOrderPaidHandler(w http.ResponseWriter, r *http.Request) {
	id, err := orderIDParam(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	user := getUserFromContext(r)
	if !isAdmin(user) {
		app.forbiddenResponse(w, r)
		return
	}

	paid, err := app.store.Orders.MarkPaid(r.Context(), id)
	if err != nil {
		app.storeErrorResponse(w, r, err)
		return
	}

	app.jsonResponse(w, http.StatusOK, paid)
}

// cancelOrderHandler godoc
//
//	@Summary		Cancel an order
//	@Description	Requester or admin; only pending orders, stock is restored
//	@Tags			orders
//	@Produce		json
//	@Security		ApiKeyAuth
//	@Param			orderID	path		int	true	"Order ID"
//	@Success		200		{object}	store.Order
//	@Failure		422		{object}	error
//	@Router			/orders/{orderID}/cancel [post]
func (app *application) cancelOrderHandler(w http.ResponseWriter, r *http.Request) {
	id, err := orderIDParam(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	o, err := app.store.Orders.GetByID(r.Context(), id)
	if err != nil {
		app.storeErrorResponse(w, r, err)
		return
	}

	user := getUserFromContext(r)
	if o.UserID != user.ID && !isAdmin(user) {
		app.forbiddenResponse(w, r)
		return
	}

	cancelled, err := app.store.Orders.Cancel(r.Context(), id)
	if err != nil {
		app.storeErrorResponse(w, r, err)
		return
	}

	app.jsonResponse(w, http.StatusOK, cancelled)
}
