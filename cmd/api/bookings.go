package main

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"bazaar/internal/booking"
	"bazaar/internal/notify"
	"bazaar/internal/store"

	"github.com/go-chi/chi/v5"
)

func bookingIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "bookingID"), 10, 64)
}

type CreateBookingPayload struct {
	BookingType   string  `json:"booking_type" validate:"required,oneof=seat daily hourly"`
	Quantity      int     `json:"quantity" validate:"required,gt=0,lte=50"`
	StartDate     string  `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate       string  `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	StartTime     *string `json:"start_time" validate:"omitempty,datetime=15:04"`
	EndTime       *string `json:"end_time" validate:"omitempty,datetime=15:04"`
	PaymentMethod string  `json:"payment_method" validate:"required,oneof=cash card"`
	ContactEmail  string  `json:"contact_email" validate:"omitempty,email"`
}

// createBookingHandler godoc
//
//	@Summary		Book a listing
//	@Description	Reserves capacity and creates a pending booking in one transaction
//	@Tags			bookings
//	@Accept			json
//	@Produce		json
//	@Security		ApiKeyAuth
//	@Param			listingID	path		int						true	"Listing ID"
//	@Param			payload		body		CreateBookingPayload	true	"Booking request"
//	@Success		201			{object}	store.Booking
//	@Failure		409			{object}	error
//	@Router			/listings/{listingID}/bookings [post]
func (app *application) createBookingHandler(w http.ResponseWriter, r *http.Request) {
	listingID, err := listingIDParam(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	var payload CreateBookingPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	start, err := time.Parse("2006-01-02", payload.StartDate)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	end := start
	if payload.EndDate != "" {
		end, err = time.Parse("2006-01-02", payload.EndDate)
		if err != nil {
			app.badRequestResponse(w, r, err)
			return
		}
	}

	user := getUserFromContext(r)
	b := &store.Booking{
		ListingID:     listingID,
		UserID:        user.ID,
		Type:          store.BookingType(payload.BookingType),
		Quantity:      payload.Quantity,
		StartDate:     start.UTC(),
		EndDate:       end.UTC(),
		StartTime:     payload.StartTime,
		EndTime:       payload.EndTime,
		PaymentMethod: payload.PaymentMethod,
	}

	if err := app.store.Bookings.CreateWithReservation(r.Context(), b, time.Now()); err != nil {
		app.storeErrorResponse(w, r, err)
		return
	}

	if payload.ContactEmail != "" {
		go app.sendBookingReceipt(user.Name, payload.ContactEmail, b)
	}

	app.jsonResponse(w, http.StatusCreated, b)
}

func (app *application) sendBookingReceipt(username, email string, b *store.Booking) {
	vars := struct {
		Username  string
		Reference string
		Total     string
	}{
		Username:  username,
		Reference: b.Reference,
		Total:     formatCents(b.TotalPriceCents),
	}

	status, err := app.mailer.Send(notify.BookingReceiptTemplate, username, email, vars)
	if err != nil {
		app.logger.Errorw("booking receipt email failed", "reference", b.Reference, "error", err)
		return
	}
	app.logger.Infow("booking receipt sent", "reference", b.Reference, "status", status)
}

func formatCents(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}

// mayCancelBooking enforces the cancellation rule: a pending booking is the
// requester's to cancel, a confirmed one is the listing owner's. Admins may
// do either. Writes the forbidden response itself and reports whether the
// caller may proceed.
func (app *application) mayCancelBooking(w http.ResponseWriter, r *http.Request, user *store.User, b *store.Booking) bool {
	if isAdmin(user) {
		return true
	}

	switch b.Status {
	case booking.StatusPending:
		if b.UserID == user.ID {
			return true
		}
	case booking.StatusConfirmed:
		l, err := app.store.Listings.GetByID(r.Context(), b.ListingID)
		if err != nil {
			app.storeErrorResponse(w, r, err)
			return false
		}
		if l.OwnerID == user.ID {
			return true
		}
	}

	app.forbiddenResponse(w, r)
	return false
}

// listMyBookingsHandler godoc
//
//	@Summary	List my bookings
//	@Tags		bookings
//	@Produce	json
//	@Security	ApiKeyAuth
//	@Param		status	query	string	false	"Filter by status"
//	@Param		page	query	int		false	"Page"
//	@Param		limit	query	int		false	"Page size"
//	@Success	200	{array}	store.Booking
//	@Router		/users/bookings [get]
func (app *application) listMyBookingsHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)

	filter := store.BookingFilter{}
	if s := r.URL.Query().Get("status"); s != "" {
		filter.Status = &s
	}
	filter.Page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	filter.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))

	bookings, err := app.store.Bookings.ListByUser(r.Context(), user.ID, filter)
	if err != nil {
		app.storeErrorResponse(w, r, err)
		return
	}

	app.jsonResponse(w, http.StatusOK, bookings)
}

type UpdateBookingStatusPayload struct {
	Status string `json:"status" validate:"required,oneof=confirmed completed cancelled"`
}

// updateBookingStatusHandler godoc
//
//	@Summary		Advance a booking
//	@Description	Listing owner or admin confirms/completes; cancellation routes through the cancel rules
//	@Tags			bookings
//	@Accept			json
//	@Produce		json
//	@Security		ApiKeyAuth
//	@Param			bookingID	path		int							true	"Booking ID"
//	@Param			payload		body		UpdateBookingStatusPayload	true	"Target status"
//	@Success		200			{object}	store.Booking
//	@Failure		422			{object}	error
//	@Router			/bookings/{bookingID}/status [post]
func (app *application) updateBookingStatusHandler(w http.ResponseWriter, r *http.Request) {
	id, err := bookingIDParam(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	var payload UpdateBookingStatusPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	b, err := app.store.Bookings.GetByID(r.Context(), id)
	if err != nil {
		app.storeErrorResponse(w, r, err)
		return
	}

	user := getUserFromContext(r)

	if payload.Status == "cancelled" {
		if !app.mayCancelBooking(w, r, user, b) {
			return
		}
	} else {
		l, err := app.store.Listings.GetByID(r.Context(), b.ListingID)
		if err != nil {
			app.storeErrorResponse(w, r, err)
			return
		}
		if l.OwnerID != user.ID && !isAdmin(user) {
			app.forbiddenResponse(w, r)
			return
		}
	}

	updated, err := app.store.Bookings.UpdateStatus(r.Context(), id, payload.Status)
	if err != nil {
		app.storeErrorResponse(w, r, err)
		return
	}

	app.jsonResponse(w, http.StatusOK, updated)
}

// markBookingPaidHandler godoc
//
//	@Summary		Record a booking payment
//	@Description	Listing owner or admin flags the booking as paid after collecting out of band
//	@Tags			bookings
//	@Produce		json
//	@Security		ApiKeyAuth
//	@Param			bookingID	path		int	true	"Booking ID"
//	@Success		200			{object}	store.Booking
//	@Failure		422			{object}	error
//	@Router			/bookings/{bookingID}/payment [post]
func (app *application) markBookingPaidHandler(w http.ResponseWriter, r *http.Request) {
	id, err := bookingIDParam(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	b, err := app.store.Bookings.GetByID(r.Context(), id)
	if err != nil {
		app.storeErrorResponse(w, r, err)
		return
	}

	user := getUserFromContext(r)
	if !isAdmin(user) {
		l, err := app.store.Listings.GetByID(r.Context(), b.ListingID)
		if err != nil {
			app.storeErrorResponse(w, r, err)
			return
		}
		if l.OwnerID != user.ID {
			app.forbiddenResponse(w, r)
			return
		}
	}

	paid, err := app.store.Bookings.MarkPaid(r.Context(), id)
	if err != nil {
		app.storeErrorResponse(w, r, err)
		return
	}

	app.jsonResponse(w, http.StatusOK, paid)
}

// cancelBookingHandler godoc
//
//	@Summary		Cancel a booking
//	@Description	Requester or admin; releases exactly the capacity that was reserved
//	@Tags			bookings
//	@Produce		json
//	@Security		ApiKeyAuth
//	@Param			bookingID	path		int	true	"Booking ID"
//	@Success		200			{object}	store.Booking
//	@Failure		422			{object}	error
//	@Router			/bookings/{bookingID}/cancel [post]
func (app *application) cancelBookingHandler(w http.ResponseWriter, r *http.Request) {
	id, err := bookingIDParam(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	b, err := app.store.Bookings.GetByID(r.Context(), id)
	if err != nil {
		app.storeErrorResponse(w, r, err)
		return
	}

	user := getUserFromContext(r)
	if !app.mayCancelBooking(w, r, user, b) {
		return
	}

	cancelled, err := app.store.Bookings.Cancel(r.Context(), id)
	if err != nil {
		app.storeErrorResponse(w, r, err)
		return
	}

	app.jsonResponse(w, http.StatusOK, cancelled)
}
