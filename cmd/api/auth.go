package main

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"bazaar/internal/store"

	"github.com/golang-jwt/jwt/v5"
)

const otpTTL = 5 * time.Minute

type RequestOTPPayload struct {
	Phone string `json:"phone" validate:"required,phone"`
	Name  string `json:"name" validate:"required,max=100"`
	Role  string `json:"role" validate:"required,oneof=shopper vendor adventurer renter"`
}

// requestOTPHandler godoc
//
//	@Summary		Request a login code
//	@Description	Registers the phone on first contact and texts a one-time code
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			payload	body	RequestOTPPayload	true	"Phone, name and role"
//	@Success		200		{object}	map[string]string
//	@Failure		400		{object}	error
//	@Router			/auth/otp [post]
func (app *application) requestOTPHandler(w http.ResponseWriter, r *http.Request) {
	var payload RequestOTPPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	user, err := app.store.Users.UpsertByPhone(r.Context(), payload.Phone, payload.Name, payload.Role)
	if err != nil {
		app.storeErrorResponse(w, r, err)
		return
	}

	code, err := generateOTPCode()
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := user.OTP.Set(code); err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.store.Users.SetOTP(r.Context(), user.ID, user.OTP.Hash(), time.Now().Add(otpTTL)); err != nil {
		app.storeErrorResponse(w, r, err)
		return
	}

	// Delivery is fire and forget; a gateway hiccup must not fail the request.
	go func() {
		msg := fmt.Sprintf("Your Bazaar login code is %s. It expires in 5 minutes.", code)
		if err := app.sms.SendSMS(user.Phone, msg); err != nil {
			app.logger.Errorw("sms delivery failed", "phone", user.Phone, "error", err)
		}
	}()

	app.jsonResponse(w, http.StatusOK, map[string]string{"message": "code sent"})
}

type VerifyOTPPayload struct {
	Phone string `json:"phone" validate:"required,phone"`
	Code  string `json:"code" validate:"required,len=6"`
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// verifyOTPHandler godoc
//
//	@Summary		Verify a login code
//	@Description	Exchanges a valid one-time code for an access/refresh token pair
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			payload	body	VerifyOTPPayload	true	"Phone and code"
//	@Success		200		{object}	TokenPair
//	@Failure		401		{object}	error
//	@Router			/auth/verify [post]
func (app *application) verifyOTPHandler(w http.ResponseWriter, r *http.Request) {
	var payload VerifyOTPPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	user, err := app.store.Users.GetByPhone(r.Context(), payload.Phone)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			app.unauthorizedErrorResponse(w, r, err)
			return
		}
		app.storeErrorResponse(w, r, err)
		return
	}

	if time.Now().After(user.OTPExpiresAt) {
		app.unauthorizedErrorResponse(w, r, fmt.Errorf("code expired"))
		return
	}
	if err := user.OTP.Compare(payload.Code); err != nil {
		app.unauthorizedErrorResponse(w, r, fmt.Errorf("invalid code"))
		return
	}

	access, refresh, err := app.authenticator.GenerateTokens(user.ID, user.Role)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.store.Users.MarkVerified(r.Context(), user.ID, refresh); err != nil {
		app.storeErrorResponse(w, r, err)
		return
	}

	app.jsonResponse(w, http.StatusOK, TokenPair{AccessToken: access, RefreshToken: refresh})
}

type RefreshPayload struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// refreshTokenHandler godoc
//
//	@Summary		Rotate tokens
//	@Description	Exchanges a stored refresh token for a fresh pair
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			payload	body	RefreshPayload	true	"Refresh token"
//	@Success		200		{object}	TokenPair
//	@Failure		401		{object}	error
//	@Router			/auth/refresh [post]
func (app *application) refreshTokenHandler(w http.ResponseWriter, r *http.Request) {
	var payload RefreshPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	token, err := app.authenticator.ValidateRefreshToken(payload.RefreshToken)
	if err != nil {
		app.unauthorizedErrorResponse(w, r, err)
		return
	}

	claims, _ := token.Claims.(jwt.MapClaims)
	userID, err := strconv.ParseInt(fmt.Sprintf("%.f", claims["sub"]), 10, 64)
	if err != nil {
		app.unauthorizedErrorResponse(w, r, err)
		return
	}

	user, err := app.store.Users.GetByID(r.Context(), userID)
	if err != nil {
		app.unauthorizedErrorResponse(w, r, err)
		return
	}

	// Rotation: the presented token must be the one on record.
	if user.RefreshToken != payload.RefreshToken {
		app.unauthorizedErrorResponse(w, r, fmt.Errorf("refresh token revoked"))
		return
	}

	access, refresh, err := app.authenticator.GenerateTokens(user.ID, user.Role)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.store.Users.SetRefreshToken(r.Context(), user.ID, refresh); err != nil {
		app.storeErrorResponse(w, r, err)
		return
	}

	app.jsonResponse(w, http.StatusOK, TokenPair{AccessToken: access, RefreshToken: refresh})
}

// logoutHandler godoc
//
//	@Summary	Log out
//	@Tags		auth
//	@Security	ApiKeyAuth
//	@Success	200	{object}	map[string]string
//	@Router		/users/logout [post]
func (app *application) logoutHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)

	if err := app.store.Users.SetRefreshToken(r.Context(), user.ID, ""); err != nil {
		app.storeErrorResponse(w, r, err)
		return
	}

	app.jsonResponse(w, http.StatusOK, map[string]string{"message": "logged out"})
}

func generateOTPCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
