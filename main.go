package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"

	bookingapi "parkhive-bend/api/booking"
	disputeapi "parkhive-bend/api/dispute"
	"parkhive-bend/booking"
	"parkhive-bend/config"
	"parkhive-bend/dao"
	"parkhive-bend/dispute"
	"parkhive-bend/escrow"
	"parkhive-bend/events"
	"parkhive-bend/models"
	"parkhive-bend/payments"
	"parkhive-bend/utils"
	"parkhive-bend/utils/notifications"

	"github.com/dgrijalva/jwt-go"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	cfg            config.Config
	bookingDAO     *dao.BookingDAO
	escrowDAO      *dao.EscrowDAO
	disputeDAO     *dao.DisputeDAO
	rateDAO        *dao.RateDAO
	factoryDAO     *dao.FactoryDAO
	bookingEngine  *booking.Engine
	bookingService *bookingapi.Service
	disputeService *disputeapi.Service
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	var err error
	cfg, err = config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration, err: %v", err)
		return
	}

	client, err := initDatabase()
	if err != nil {
		log.Fatalf("failed to initialize database, err: %v", err)
		return
	}

	defer func() {
		if err = client.Disconnect(context.TODO()); err != nil {
			log.Fatal(err)
		}
	}()

	if err := initServices(client.Database(cfg.MongoDB)); err != nil {
		log.Fatalf("failed to initialize services, err: %v", err)
		return
	}

	r := initRoutes()
	r.Use(func(next http.Handler) http.Handler {
		return handlers.LoggingHandler(os.Stdout, next)
	})

	// background services
	go bookingEngine.PendingExpiryJob(cfg.JobSweepInterval, cfg.PendingExpiry)
	go bookingEngine.CompletionSweepJob(cfg.JobSweepInterval)

	log.Println("Running server on port", cfg.Port)

	header := handlers.AllowedHeaders([]string{"X-Requested-With", "Content-Type", "Authorization"})
	methods := handlers.AllowedMethods([]string{"GET", "POST", "PUT", "HEAD", "OPTIONS"})
	origins := handlers.AllowedOrigins([]string{"*"})

	h := handlers.CORS(header, methods, origins)
	if err := http.ListenAndServe(":"+cfg.Port, h(r)); err != nil {
		log.Fatal(err)
	}
}

func initRoutes() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "ok", "message": "parkhive-backend"}`))
	})
	v1 := r.PathPrefix("/api/v1").Subrouter()
	bookingsRouter := v1.PathPrefix("/bookings").Subrouter()
	disputesRouter := v1.PathPrefix("/disputes").Subrouter()
	resourcesRouter := v1.PathPrefix("/resources").Subrouter()

	// Bookings
	bookingsRouter.HandleFunc("", useAuth(bookingService.ListBookings)).Methods("GET")
	bookingsRouter.HandleFunc("", useAuth(bookingService.RequestBooking)).Methods("POST")
	bookingsRouter.HandleFunc("/{id}", useAuth(bookingService.ViewBooking)).Methods("GET")
	bookingsRouter.HandleFunc("/{id}/confirm", useAuth(bookingService.ConfirmBooking)).Methods("PUT")
	bookingsRouter.HandleFunc("/{id}/cancel", useAuth(bookingService.CancelBooking)).Methods("PUT")
	bookingsRouter.HandleFunc("/{id}/complete", useAuth(bookingService.CompleteBooking)).Methods("PUT")
	bookingsRouter.HandleFunc("/{id}/escrow", useAuth(bookingService.ViewEscrow)).Methods("GET")
	bookingsRouter.HandleFunc("/{id}/disputes", useAuth(bookingService.ListBookingDisputes)).Methods("GET")

	// Disputes
	disputesRouter.HandleFunc("", useAuth(disputeService.OpenDispute)).Methods("POST")
	disputesRouter.HandleFunc("/{id}", useAuth(disputeService.ViewDispute)).Methods("GET")
	disputesRouter.HandleFunc("/{id}/resolve", useAuth(disputeService.ResolveDispute)).Methods("PUT")

	// Rate schedules
	resourcesRouter.HandleFunc("/{id}/rates", bookingService.ViewRateSchedule).Methods("GET")
	resourcesRouter.HandleFunc("/{id}/rates", useAuth(bookingService.UpsertRateSchedule)).Methods("PUT")

	return r
}

func initDatabase() (*mongo.Client, error) {
	client, _, err := dao.Initialize(cfg.MongoURI)
	if err != nil {
		return nil, err
	}

	db := client.Database(cfg.MongoDB)
	bookingDAO = dao.NewBookingDAO(db)
	escrowDAO = dao.NewEscrowDAO(db)
	disputeDAO = dao.NewDisputeDAO(db)
	rateDAO = dao.NewRateDAO(db)
	factoryDAO = dao.NewFactoryDAO(db)

	return client, nil
}

func initServices(db *mongo.Database) error {
	proc, err := payments.NewPayPalProcessor(cfg.PayPalClientID, cfg.PayPalClientSecret, cfg.Env)
	if err != nil {
		return err
	}

	exec := payments.NewExecutor(proc, cfg.RefundMaxAttempts, cfg.RefundBackoff, cfg.RefundCallTimeout)
	ledger := escrow.NewLedger(escrowDAO, disputeDAO, exec)
	bus := events.NewBus()

	bookingEngine = booking.NewEngine(bookingDAO, rateDAO, factoryDAO, disputeDAO, ledger, proc, bus, cfg.ReleaseAfterStart)
	workflow := dispute.NewWorkflow(disputeDAO, bookingDAO, escrowDAO, ledger, bookingEngine, factoryDAO, bus)

	notifiable, err := notifications.NewNotifiable(factoryDAO)
	if err != nil {
		// push/mail fan-out is best effort; the engine runs without it
		log.Printf("notifiable_init: %v", err)
		notifiable = nil
	} else {
		notifications.Attach(bus, notifiable)
	}

	bookingService = bookingapi.NewBookingService(bookingEngine, bookingDAO, escrowDAO, rateDAO, disputeDAO)
	disputeService = disputeapi.NewDisputeService(workflow, disputeDAO, bookingDAO, factoryDAO, notifiable)

	return nil
}

// useAuth validates a token for protected routes
func useAuth(nextHandler http.HandlerFunc) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authorizationHeader := r.Header.Get("Authorization")
		if authorizationHeader == "" {
			utils.RespondWithError(w, http.StatusUnauthorized, "You are not authorized")
			return
		}
		token, err := jwt.Parse(authorizationHeader, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("Unexpected signing method: %v", token.Header["alg"])
			}

			return []byte(cfg.JWTSecret), nil
		})
		if err != nil {
			log.Printf("auth parse err: %v", err)
			utils.RespondWithError(w, http.StatusUnauthorized, "You are not authorized")
			return
		}

		var userIDKey = models.ContextKey("user_id")
		var userEmailKey = models.ContextKey("user_email")

		if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
			var id, email string
			id, ok = claims["id"].(string)
			if !ok {
				utils.RespondWithError(w, http.StatusUnauthorized, "Error converting claim to string")
				return
			}
			email, ok = claims["email"].(string)
			if !ok {
				utils.RespondWithError(w, http.StatusUnauthorized, "Error converting claim to string")
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, id)
			rctx := context.WithValue(ctx, userEmailKey, email)

			nextHandler.ServeHTTP(w, r.WithContext(rctx))
			return
		}

		utils.RespondWithError(w, http.StatusUnauthorized, "An authorized error occurred")
	})
}
