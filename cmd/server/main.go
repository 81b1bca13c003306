package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/skagit-alpine-club/registration-server/internal/config"
	"github.com/skagit-alpine-club/registration-server/internal/database"
	"github.com/skagit-alpine-club/registration-server/internal/handler"
	"github.com/skagit-alpine-club/registration-server/internal/jobs"
	"github.com/skagit-alpine-club/registration-server/internal/payments"
	"github.com/skagit-alpine-club/registration-server/internal/queue"
	"github.com/skagit-alpine-club/registration-server/internal/repository"
	"github.com/skagit-alpine-club/registration-server/internal/router"
	"github.com/skagit-alpine-club/registration-server/internal/service"
)

func main() {
	_ = godotenv.Load() // .env is optional; real deployments use the environment
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable; rate limiting and response caching disabled")
	}

	stripeClient := payments.NewStripeClient(cfg.StripeAPIKey, cfg.StripeWebhookSecret,
		cfg.CheckoutSuccessURL, cfg.CheckoutCancelURL)

	// Repositories.
	courseTypes := repository.NewCourseTypeRepo(db)
	courses := repository.NewCourseRepo(db)
	carts := repository.NewCartRepo(db)
	users := repository.NewUserRepo(db, carts)
	tokens := repository.NewTokenRepo(db)
	waitLists := repository.NewWaitListRepo(db)
	waitListInvoices := repository.NewWaitListInvoiceRepo(db)
	orders := repository.NewOrderRepo(db, courses, carts)
	settings := repository.NewSettingsRepo(db)
	discounts := repository.NewDiscountRepo(db)
	forms := repository.NewRegistrationFormRepo(db)

	// Services.
	waitlistSvc := service.NewWaitlist(courses, waitLists, waitListInvoices, users, settings, orders, stripeClient)
	fulfillmentSvc := service.NewFulfillment(courses, orders, users, settings, waitlistSvc, stripeClient)

	// Handlers.
	authHandler := handler.NewAuthHandler(cfg, users, tokens)
	catalogHandler := handler.NewCatalogHandler(courseTypes, courses, carts, waitLists, waitListInvoices)
	formHandler := handler.NewRegistrationFormHandler(forms)
	cartHandler := handler.NewCartHandler(carts, settings)
	checkoutHandler := handler.NewCheckoutHandler(carts, users, discounts, settings, stripeClient)
	webhookHandler := handler.NewWebhookHandler(stripeClient, fulfillmentSvc, waitlistSvc)
	waitlistHandler := handler.NewWaitListHandler(waitLists, courses)
	enrollmentHandler := handler.NewEnrollmentHandler(courses, orders, fulfillmentSvc)
	instructorHandler := handler.NewInstructorHandler(courses)
	adminHandler := handler.NewAdminHandler(courseTypes, courses, settings, discounts, users, waitlistSvc)

	// Background work: broker consumer and the expired-offer sweep.
	go func() {
		if err := queue.StartConsumer(); err != nil {
			log.Printf("queue consumer stopped: %v", err)
		}
	}()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go jobs.StartInvoiceSweep(ctx, waitlistSvc, time.Duration(cfg.InvoiceSweepInterval)*time.Second)

	e := echo.New()
	router.RegisterRoutes(e, webhookHandler)
	router.RegisterAuth(e, authHandler, cfg.JWTSecret)
	router.RegisterPublic(e, catalogHandler, rdb)
	router.RegisterMember(e, cfg.JWTSecret, catalogHandler, formHandler, cartHandler,
		checkoutHandler, waitlistHandler, enrollmentHandler)
	router.RegisterInstructor(e, cfg.JWTSecret, instructorHandler)
	router.RegisterAdmin(e, cfg.JWTSecret, adminHandler)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
