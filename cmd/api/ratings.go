package main

import (
	"net/http"

	"bazaar/internal/store"
)

type CreateRatingPayload struct {
	Score   int    `json:"score" validate:"gte=0,lte=5"`
	Comment string `json:"comment" validate:"max=1000"`
}

// createRatingHandler godoc
//
//	@Summary		Rate a listing
//	@Description	Requires a completed booking or a delivered order line for the listing
//	@Tags			ratings
//	@Accept			json
//	@Produce		json
//	@Security		ApiKeyAuth
//	@Param			listingID	path		int					true	"Listing ID"
//	@Param			payload		body		CreateRatingPayload	true	"Score and comment"
//	@Success		200			{object}	store.RatingStats
//	@Failure		403			{object}	error
//	@Router			/listings/{listingID}/ratings [post]
func (app *application) createRatingHandler(w http.ResponseWriter, r *http.Request) {
	listingID, err := listingIDParam(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	var payload CreateRatingPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	user := getUserFromContext(r)

	booked, err := app.store.Bookings.HasCompletedBooking(r.Context(), user.ID, listingID)
	if err != nil {
		app.storeErrorResponse(w, r, err)
		return
	}
	if !booked {
		delivered, err := app.store.Orders.HasDeliveredLine(r.Context(), user.ID, listingID)
		if err != nil {
			app.storeErrorResponse(w, r, err)
			return
		}
		if !delivered {
			app.storeErrorResponse(w, r, store.ErrNotEligible)
			return
		}
	}

	rating := &store.Rating{
		ListingID: listingID,
		UserID:    user.ID,
		Score:     payload.Score,
		Comment:   payload.Comment,
	}

	stats, err := app.store.Ratings.Upsert(r.Context(), rating)
	if err != nil {
		app.storeErrorResponse(w, r, err)
		return
	}

	app.jsonResponse(w, http.StatusOK, stats)
}

// getRatingsHandler godoc
//
//	@Summary	List ratings for a listing
//	@Tags		ratings
//	@Produce	json
//	@Param		listingID	path	int	true	"Listing ID"
//	@Success	200	{array}	store.Rating
//	@Router		/listings/{listingID}/ratings [get]
func (app *application) getRatingsHandler(w http.ResponseWriter, r *http.Request) {
	listingID, err := listingIDParam(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	ratings, err := app.store.Ratings.ListByListing(r.Context(), listingID)
	if err != nil {
		app.storeErrorResponse(w, r, err)
		return
	}

	app.jsonResponse(w, http.StatusOK, ratings)
}
