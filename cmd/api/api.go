package main

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bazaar/docs" //this is required to serve the generated swagger docs
	"bazaar/internal/auth"
	"bazaar/internal/notify"
	"bazaar/internal/ratelimiter"
	"bazaar/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
)

type application struct {
	config        config
	store         store.Storage
	logger        *zap.SugaredLogger
	mailer        notify.EmailClient
	sms           notify.SMSClient
	authenticator auth.Authenticator
	rateLimiter   ratelimiter.Limiter
}

type config struct {
	addr        string
	db          dbConfig
	env         string
	apiURL      string
	frontendURL string
	auth        authConfig
	mail        mailConfig
	sms         smsConfig
	rateLimiter ratelimiter.Config
}

type authConfig struct {
	basic basicConfig
	token tokenConfig
}

type tokenConfig struct {
	secret          string
	refreshSecret   string
	accessTokenExp  time.Duration
	refreshTokenExp time.Duration
	iss             string
}

type basicConfig struct {
	user string
	pass string
}

type mailConfig struct {
	fromEmail string
	host      string
	port      int
	username  string
	password  string
}

type smsConfig struct {
	endpoint string
	token    string
}

type dbConfig struct {
	addr        string
	maxConns    int
	maxIdleTime string
}

func (app *application) mount() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Use(app.RateLimiterMiddleware)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Route("/v1", func(r chi.Router) {
		r.With(app.BasicAuthMiddleware()).Get("/health", app.healthCheckHandler)
		r.With(app.BasicAuthMiddleware()).Get("/debug/vars", expvar.Handler().ServeHTTP)

		docsURL := fmt.Sprintf("%s/swagger/doc.json", app.config.addr)
		r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL(docsURL)))

		r.Route("/auth", func(r chi.Router) {
			r.Post("/otp", app.requestOTPHandler)
			r.Post("/verify", app.verifyOTPHandler)
			r.Post("/refresh", app.refreshTokenHandler)
		})

		r.Route("/listings", func(r chi.Router) {
			r.Get("/{listingID}", app.getListingHandler)
			r.Get("/{listingID}/availability", app.getAvailabilityHandler)
			r.Get("/{listingID}/available-times", app.availableTimesHandler)
			r.Get("/{listingID}/ratings", app.getRatingsHandler)

			r.Group(func(r chi.Router) {
				r.Use(app.AuthTokenMiddleware)
				r.Post("/", app.createListingHandler)
				r.Patch("/{listingID}", app.updateListingHandler)
				r.Put("/{listingID}/availability", app.upsertAvailabilityHandler)
				r.Put("/{listingID}/discount", app.setDiscountHandler)
				r.Post("/{listingID}/bookings", app.createBookingHandler)
				r.Post("/{listingID}/ratings", app.createRatingHandler)
			})
		})

		r.Route("/bookings", func(r chi.Router) {
			r.Use(app.AuthTokenMiddleware)
			r.Post("/{bookingID}/status", app.updateBookingStatusHandler)
			r.Post("/{bookingID}/payment", app.markBookingPaidHandler)
			r.Post("/{bookingID}/cancel", app.cancelBookingHandler)
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(app.AuthTokenMiddleware)
			r.Get("/bookings", app.listMyBookingsHandler)
			r.Post("/logout", app.logoutHandler)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Use(app.AuthTokenMiddleware)
			r.Post("/", app.createOrderHandler)
			r.Get("/", app.listMyOrdersHandler)
			r.Get("/{orderID}", app.getOrderHandler)
			r.Post("/{orderID}/status", app.updateOrderStatusHandler)
			r.Post("/{orderID}/payment", app.markOrderPaidHandler)
			r.Post("/{orderID}/cancel", app.cancelOrderHandler)
		})
	})
	return r
}

func (app *application) run(mux http.Handler) error {
	docs.SwaggerInfo.Version = version
	docs.SwaggerInfo.Host = app.config.apiURL
	docs.SwaggerInfo.BasePath = "/v1"

	srv := &http.Server{
		Addr:         app.config.addr,
		Handler:      mux,
		WriteTimeout: time.Second * 30,
		ReadTimeout:  time.Second * 10,
		IdleTimeout:  time.Minute,
	}

	shutdown := make(chan error)

	go func() {
		quit := make(chan os.Signal, 1)

		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		app.logger.Infow("signal caught", "signal", s.String())

		shutdown <- srv.Shutdown(ctx)
	}()

	app.logger.Infow("server has started", "addr", app.config.addr, "env", app.config.env)

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	err = <-shutdown
	if err != nil {
		return err
	}

	app.logger.Infow("server has stopped", "addr", app.config.addr, "env", app.config.env)

	return nil
}
