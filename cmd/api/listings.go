package main

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"bazaar/internal/booking"
	"bazaar/internal/pricing"
	"bazaar/internal/store"

	"github.com/go-chi/chi/v5"
)

func listingIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "listingID"), 10, 64)
}

type CreateListingPayload struct {
	Kind           string `json:"kind" validate:"required,oneof=adventure rental product"`
	CapacityModel  string `json:"capacity_model" validate:"omitempty,oneof=date_bucketed time_range flat_stock"`
	Title          string `json:"title" validate:"required,max=200"`
	Description    string `json:"description" validate:"max=2000"`
	BasePriceCents int64  `json:"base_price_cents" validate:"required,gt=0"`
	MinimumHours   int    `json:"minimum_hours" validate:"gte=0,lte=24"`
	Stock          int    `json:"stock" validate:"gte=0"`
}

// createListingHandler godoc
//
//	@Summary	Create a listing
//	@Tags		listings
//	@Accept		json
//	@Produce	json
//	@Security	ApiKeyAuth
//	@Param		payload	body		CreateListingPayload	true	"Listing fields"
//	@Success	201		{object}	store.Listing
//	@Failure	403		{object}	error
//	@Router		/listings [post]
func (app *application) createListingHandler(w http.ResponseWriter, r *http.Request) {
	var payload CreateListingPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	user := getUserFromContext(r)
	kind := store.ListingKind(payload.Kind)
	if !canList(user, kind) {
		app.forbiddenResponse(w, r)
		return
	}

	model := store.CapacityModel(payload.CapacityModel)
	if model == "" {
		model = store.DefaultCapacityModel(kind)
	}
	if kind == store.KindProduct && model != store.CapacityFlatStock {
		app.badRequestResponse(w, r, fmt.Errorf("products use flat_stock capacity"))
		return
	}
	if model == store.CapacityTimeRange && kind != store.KindRental {
		app.badRequestResponse(w, r, fmt.Errorf("only rentals can be booked hourly"))
		return
	}

	l := &store.Listing{
		OwnerID:        user.ID,
		Kind:           kind,
		CapacityModel:  model,
		Title:          payload.Title,
		Description:    payload.Description,
		BasePriceCents: payload.BasePriceCents,
		MinimumHours:   payload.MinimumHours,
		Stock:          payload.Stock,
		IsActive:       true,
	}

	if err := app.store.Listings.Create(r.Context(), l); err != nil {
		app.storeErrorResponse(w, r, err)
		return
	}

	app.jsonResponse(w, http.StatusCreated, l)
}

// getListingHandler godoc
//
//	@Summary	Get a listing
//	@Tags		listings
//	@Produce	json
//	@Param		listingID	path		int	true	"Listing ID"
//	@Success	200			{object}	store.Listing
//	@Failure	404			{object}	error
//	@Router		/listings/{listingID} [get]
func (app *application) getListingHandler(w http.ResponseWriter, r *http.Request) {
	id, err := listingIDParam(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	l, err := app.store.Listings.GetByID(r.Context(), id)
	if err != nil {
		app.storeErrorResponse(w, r, err)
		return
	}

	app.jsonResponse(w, http.StatusOK, l)
}

type UpdateListingPayload struct {
	Title          *string `json:"title" validate:"omitempty,max=200"`
	Description    *string `json:"description" validate:"omitempty,max=2000"`
	BasePriceCents *int64  `json:"base_price_cents" validate:"omitempty,gt=0"`
	MinimumHours   *int    `json:"minimum_hours" validate:"omitempty,gte=0,lte=24"`
	Stock          *int    `json:"stock" validate:"omitempty,gte=0"`
	IsActive       *bool   `json:"is_active"`
}

// updateListingHandler godoc
//
//	@Summary	Update a listing
//	@Tags		listings
//	@Accept		json
//	@Produce	json
//	@Security	ApiKeyAuth
//	@Param		listingID	path		int						true	"Listing ID"
//	@Param		payload		body		UpdateListingPayload	true	"Fields to change"
//	@Success	200			{object}	store.Listing
//	@Failure	403			{object}	error
//	@Router		/listings/{listingID} [patch]
func (app *application) updateListingHandler(w http.ResponseWriter, r *http.Request) {
	id, err := listingIDParam(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	var payload UpdateListingPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	l, err := app.store.Listings.GetByID(r.Context(), id)
	if err != nil {
		app.storeErrorResponse(w, r, err)
		return
	}

	user := getUserFromContext(r)
	if l.OwnerID != user.ID && !isAdmin(user) {
		app.forbiddenResponse(w, r)
		return
	}

	if payload.Title != nil {
		l.Title = *payload.Title
	}
	if payload.Description != nil {
		l.Description = *payload.Description
	}
	if payload.BasePriceCents != nil {
		l.BasePriceCents = *payload.BasePriceCents
	}
	if payload.MinimumHours != nil {
		l.MinimumHours = *payload.MinimumHours
	}
	if payload.Stock != nil {
		l.Stock = *payload.Stock
	}
	if payload.IsActive != nil {
		l.IsActive = *payload.IsActive
	}

	if err := app.store.Listings.Update(r.Context(), l, time.Now()); err != nil {
		app.storeErrorResponse(w, r, err)
		return
	}

	app.jsonResponse(w, http.StatusOK, l)
}

type AvailabilityDayPayload struct {
	Day        string `json:"day" validate:"required,datetime=2006-01-02"`
	TotalUnits int    `json:"total_units" validate:"gte=0"`
	PriceCents *int64 `json:"price_cents" validate:"omitempty,gt=0"`
}

type UpsertAvailabilityPayload struct {
	Days []AvailabilityDayPayload `json:"days" validate:"required,min=1,max=366,dive"`
}

// upsertAvailabilityHandler godoc
//
//	@Summary	Publish day buckets
//	@Tags		listings
//	@Accept		json
//	@Produce	json
//	@Security	ApiKeyAuth
//	@Param		listingID	path		int							true	"Listing ID"
//	@Param		payload		body		UpsertAvailabilityPayload	true	"Day buckets"
//	@Success	200			{object}	map[string]int
//	@Failure	403			{object}	error
//	@Router		/listings/{listingID}/availability [put]
func (app *application) upsertAvailabilityHandler(w http.ResponseWriter, r *http.Request) {
	id, err := listingIDParam(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	var payload UpsertAvailabilityPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	l, err := app.store.Listings.GetByID(r.Context(), id)
	if err != nil {
		app.storeErrorResponse(w, r, err)
		return
	}

	user := getUserFromContext(r)
	if l.OwnerID != user.ID && !isAdmin(user) {
		app.forbiddenResponse(w, r)
		return
	}
	if l.CapacityModel != store.CapacityDateBucketed {
		app.badRequestResponse(w, r, fmt.Errorf("listing does not use day buckets"))
		return
	}

	days := make([]store.DayBucket, 0, len(payload.Days))
	for _, d := range payload.Days {
		day, err := time.Parse("2006-01-02", d.Day)
		if err != nil {
			app.badRequestResponse(w, r, err)
			return
		}
		days = append(days, store.DayBucket{
			Day:        day.UTC(),
			TotalUnits: d.TotalUnits,
			PriceCents: d.PriceCents,
		})
	}

	if err := app.store.Availability.UpsertDays(r.Context(), id, days); err != nil {
		app.storeErrorResponse(w, r, err)
		return
	}

	app.jsonResponse(w, http.StatusOK, map[string]int{"days": len(days)})
}

// getAvailabilityHandler godoc
//
//	@Summary	List day buckets
//	@Tags		listings
//	@Produce	json
//	@Param		listingID	path	int		true	"Listing ID"
//	@Param		from		query	string	true	"Start date (2006-01-02)"
//	@Param		to			query	string	true	"End date (2006-01-02)"
//	@Success	200	{array}	store.DayBucket
//	@Router		/listings/{listingID}/availability [get]
func (app *application) getAvailabilityHandler(w http.ResponseWriter, r *http.Request) {
	id, err := listingIDParam(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	from, err := time.Parse("2006-01-02", r.URL.Query().Get("from"))
	if err != nil {
		app.badRequestResponse(w, r, fmt.Errorf("invalid from date"))
		return
	}
	to, err := time.Parse("2006-01-02", r.URL.Query().Get("to"))
	if err != nil {
		app.badRequestResponse(w, r, fmt.Errorf("invalid to date"))
		return
	}

	days, err := app.store.Availability.ListRange(r.Context(), id, from.UTC(), to.UTC())
	if err != nil {
		app.storeErrorResponse(w, r, err)
		return
	}

	app.jsonResponse(w, http.StatusOK, days)
}

type SetDiscountPayload struct {
	Percent    int    `json:"percent" validate:"required,gt=0,lt=100"`
	ValidFrom  string `json:"valid_from" validate:"required,datetime=2006-01-02"`
	ValidUntil string `json:"valid_until" validate:"required,datetime=2006-01-02"`
}

// setDiscountHandler godoc
//
//	@Summary	Set the listing discount window
//	@Tags		listings
//	@Accept		json
//	@Produce	json
//	@Security	ApiKeyAuth
//	@Param		listingID	path		int					true	"Listing ID"
//	@Param		payload		body		SetDiscountPayload	true	"Discount"
//	@Success	200			{object}	map[string]string
//	@Router		/listings/{listingID}/discount [put]
func (app *application) setDiscountHandler(w http.ResponseWriter, r *http.Request) {
	id, err := listingIDParam(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	var payload SetDiscountPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	from, _ := time.Parse("2006-01-02", payload.ValidFrom)
	until, _ := time.Parse("2006-01-02", payload.ValidUntil)
	// The window is inclusive of its last day.
	until = until.Add(24*time.Hour - time.Second)
	if until.Before(from) {
		app.badRequestResponse(w, r, fmt.Errorf("valid_until before valid_from"))
		return
	}

	user := getUserFromContext(r)
	d := pricing.Discount{Percent: payload.Percent, ValidFrom: from, ValidUntil: until}

	if err := app.store.Listings.SetDiscount(r.Context(), id, user.ID, d, time.Now()); err != nil {
		app.storeErrorResponse(w, r, err)
		return
	}

	app.jsonResponse(w, http.StatusOK, map[string]string{"message": "discount set"})
}

type FreeSlot struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// availableTimesHandler godoc
//
//	@Summary	Free hourly slots for a date
//	@Tags		listings
//	@Produce	json
//	@Param		listingID	path	int		true	"Listing ID"
//	@Param		date		query	string	true	"Date (2006-01-02)"
//	@Success	200	{array}	FreeSlot
//	@Router		/listings/{listingID}/available-times [get]
func (app *application) availableTimesHandler(w http.ResponseWriter, r *http.Request) {
	id, err := listingIDParam(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	date, err := time.Parse("2006-01-02", r.URL.Query().Get("date"))
	if err != nil {
		app.badRequestResponse(w, r, fmt.Errorf("invalid date"))
		return
	}

	l, err := app.store.Listings.GetByID(r.Context(), id)
	if err != nil {
		app.storeErrorResponse(w, r, err)
		return
	}
	if l.CapacityModel != store.CapacityTimeRange {
		app.badRequestResponse(w, r, fmt.Errorf("listing is not booked hourly"))
		return
	}

	occupied, err := app.store.Bookings.WindowsForDate(r.Context(), id, date.UTC())
	if err != nil {
		app.storeErrorResponse(w, r, err)
		return
	}

	free := booking.FreeWindows(occupied, l.MinimumHours*60)
	slots := make([]FreeSlot, 0, len(free))
	for _, wdw := range free {
		slots = append(slots, FreeSlot{
			Start: fmt.Sprintf("%02d:%02d", wdw.Start/60, wdw.Start%60),
			End:   fmt.Sprintf("%02d:%02d", wdw.End/60, wdw.End%60),
		})
	}

	app.jsonResponse(w, http.StatusOK, slots)
}
