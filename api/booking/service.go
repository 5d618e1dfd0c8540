package booking

import (
	"log"
	"net/http"
	"time"

	"parkhive-bend/booking"
	"parkhive-bend/dao"
	"parkhive-bend/models"
	"parkhive-bend/utils"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Service represents the Booking Service
type Service struct {
	engine     *booking.Engine
	dao        *dao.BookingDAO
	escrowDAO  *dao.EscrowDAO
	rateDAO    *dao.RateDAO
	disputeDAO *dao.DisputeDAO
}

// NewBookingService returns a new booking service
func NewBookingService(engine *booking.Engine, bookingDAO *dao.BookingDAO, escrowDAO *dao.EscrowDAO, rateDAO *dao.RateDAO, disputeDAO *dao.DisputeDAO) *Service {
	return &Service{
		engine:     engine,
		dao:        bookingDAO,
		escrowDAO:  escrowDAO,
		rateDAO:    rateDAO,
		disputeDAO: disputeDAO,
	}
}

// RequestBooking creates a new pending booking
func (s *Service) RequestBooking(w http.ResponseWriter, r *http.Request) {
	var req models.BookingReq
	err := utils.DecodeReq(r, &req)
	if err != nil {
		log.Printf("error decoding request_booking req: %v", err)
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request data sent")
		return
	}

	actorID, ok := actor(r)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Invalid user identity")
		return
	}

	created, err := s.engine.RequestBooking(r.Context(), actorID, req)
	if err != nil {
		log.Printf("request_booking: %v", err)
		utils.RespondWithAppError(w, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusCreated, utils.Response{
		Status: "success",
		Code:   http.StatusCreated,
		Data:   created,
	})
}

// ConfirmBooking re-checks availability, authorizes payment into escrow and
// flips the booking to confirmed
func (s *Service) ConfirmBooking(w http.ResponseWriter, r *http.Request) {
	bookingID, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid booking ID")
		return
	}

	actorID, ok := actor(r)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Invalid user identity")
		return
	}

	confirmed, err := s.engine.ConfirmBooking(r.Context(), bookingID, actorID)
	if err != nil {
		log.Printf("confirm_booking: %v", err)
		utils.RespondWithAppError(w, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.Response{
		Status: "success",
		Code:   http.StatusOK,
		Data:   confirmed,
	})
}

// CancelBooking cancels a pending or confirmed booking, settling escrow per
// the cancellation policy
func (s *Service) CancelBooking(w http.ResponseWriter, r *http.Request) {
	bookingID, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid booking ID")
		return
	}

	var req models.CancelBookingReq
	if err := utils.DecodeReq(r, &req); err != nil {
		log.Printf("error decoding cancel_booking req: %v", err)
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request data sent")
		return
	}

	actorID, ok := actor(r)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Invalid user identity")
		return
	}

	cancelled, err := s.engine.CancelBooking(r.Context(), bookingID, actorID, req.Reason)
	if err != nil {
		log.Printf("cancel_booking: %v", err)
		utils.RespondWithAppError(w, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.Response{
		Status: "success",
		Code:   http.StatusOK,
		Data:   cancelled,
	})
}

// CompleteBooking finishes a confirmed booking whose interval has ended and
// releases the escrowed funds to the owner
func (s *Service) CompleteBooking(w http.ResponseWriter, r *http.Request) {
	bookingID, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid booking ID")
		return
	}

	actorID, ok := actor(r)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Invalid user identity")
		return
	}

	completed, err := s.engine.CompleteBooking(r.Context(), bookingID, actorID.Hex())
	if err != nil {
		log.Printf("complete_booking: %v", err)
		utils.RespondWithAppError(w, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.Response{
		Status: "success",
		Code:   http.StatusOK,
		Data:   completed,
	})
}

// ViewBooking ...
func (s *Service) ViewBooking(w http.ResponseWriter, r *http.Request) {
	bookingID, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid booking ID")
		return
	}

	b, err := s.dao.FindByID(r.Context(), bookingID)
	if err != nil {
		log.Printf("view_booking: failed to retrieve booking: %v", err)
		utils.RespondWithError(w, http.StatusNotFound, "Booking not found")
		return
	}

	actorID, ok := actor(r)
	if !ok || (b.RequesterID != actorID && b.OwnerID != actorID) {
		utils.RespondWithError(w, http.StatusForbidden, "Operation not available to user")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.Response{
		Status: "success",
		Code:   http.StatusOK,
		Data:   b,
	})
}

// ListBookings lists the caller's bookings, as requester by default or as
// spot owner with ?role=owner
func (s *Service) ListBookings(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(r)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Invalid user identity")
		return
	}

	filter := bson.M{"requester_id": actorID}
	if r.URL.Query().Get("role") == "owner" {
		filter = bson.M{"owner_id": actorID}
	}
	if status := r.URL.Query().Get("status"); status != "" {
		filter["status"] = status
	}

	bookings, err := s.dao.Query(r.Context(), filter)
	if err != nil {
		log.Printf("list_bookings: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "An Error occurred while processing request")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.Response{
		Status: "success",
		Code:   http.StatusOK,
		Data:   bookings,
	})
}

// ViewEscrow returns the escrow record backing a booking, audit log included
func (s *Service) ViewEscrow(w http.ResponseWriter, r *http.Request) {
	bookingID, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid booking ID")
		return
	}

	b, err := s.dao.FindByID(r.Context(), bookingID)
	if err != nil {
		log.Printf("view_escrow: failed to retrieve booking: %v", err)
		utils.RespondWithError(w, http.StatusNotFound, "Booking not found")
		return
	}

	actorID, ok := actor(r)
	if !ok || (b.RequesterID != actorID && b.OwnerID != actorID) {
		utils.RespondWithError(w, http.StatusForbidden, "Operation not available to user")
		return
	}

	rec, err := s.escrowDAO.FindByBookingID(r.Context(), b.ID)
	if err != nil {
		log.Printf("view_escrow: failed to retrieve escrow: %v", err)
		utils.RespondWithError(w, http.StatusNotFound, "No escrow record for booking")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.Response{
		Status: "success",
		Code:   http.StatusOK,
		Data:   rec,
	})
}

// ListBookingDisputes returns the dispute history of a booking
func (s *Service) ListBookingDisputes(w http.ResponseWriter, r *http.Request) {
	bookingID, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid booking ID")
		return
	}

	b, err := s.dao.FindByID(r.Context(), bookingID)
	if err != nil {
		log.Printf("list_booking_disputes: failed to retrieve booking: %v", err)
		utils.RespondWithError(w, http.StatusNotFound, "Booking not found")
		return
	}

	actorID, ok := actor(r)
	if !ok || (b.RequesterID != actorID && b.OwnerID != actorID) {
		utils.RespondWithError(w, http.StatusForbidden, "Operation not available to user")
		return
	}

	disputes, err := s.disputeDAO.Query(r.Context(), bson.M{"booking_id": b.ID})
	if err != nil {
		log.Printf("list_booking_disputes: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "An Error occurred while processing request")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.Response{
		Status: "success",
		Code:   http.StatusOK,
		Data:   disputes,
	})
}

// UpsertRateSchedule writes the tiered prices of a parking space. Only the
// recorded owner may change an existing schedule.
func (s *Service) UpsertRateSchedule(w http.ResponseWriter, r *http.Request) {
	resourceID := mux.Vars(r)["id"]
	if resourceID == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid resource ID")
		return
	}

	var req models.RateScheduleReq
	if err := utils.DecodeReq(r, &req); err != nil {
		log.Printf("error decoding upsert_rates req: %v", err)
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request data sent")
		return
	}

	if req.HourlyRate < 0 || req.DailyRate < 0 || req.WeeklyRate < 0 || req.MonthlyRate < 0 {
		utils.RespondWithError(w, http.StatusBadRequest, "Rates cannot be negative")
		return
	}
	if req.Currency == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "Currency is missing from input")
		return
	}

	actorID, ok := actor(r)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Invalid user identity")
		return
	}

	if existing, err := s.rateDAO.FindByResourceID(r.Context(), resourceID); err == nil && existing.OwnerID != actorID {
		utils.RespondWithError(w, http.StatusForbidden, "Operation not available to user")
		return
	}

	now := time.Now().UTC()
	schedule := models.RateSchedule{
		ID:          primitive.NewObjectID(),
		ResourceID:  resourceID,
		OwnerID:     actorID,
		HourlyRate:  req.HourlyRate,
		DailyRate:   req.DailyRate,
		WeeklyRate:  req.WeeklyRate,
		MonthlyRate: req.MonthlyRate,
		Currency:    req.Currency,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.rateDAO.Upsert(r.Context(), schedule); err != nil {
		log.Printf("upsert_rates: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "An Error occurred while processing request")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.Response{
		Status: "success",
		Code:   http.StatusOK,
		Data:   schedule,
	})
}

// ViewRateSchedule ...
func (s *Service) ViewRateSchedule(w http.ResponseWriter, r *http.Request) {
	resourceID := mux.Vars(r)["id"]
	if resourceID == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid resource ID")
		return
	}

	schedule, err := s.rateDAO.FindByResourceID(r.Context(), resourceID)
	if err != nil {
		log.Printf("view_rates: failed to retrieve schedule: %v", err)
		utils.RespondWithError(w, http.StatusNotFound, "No rate schedule for resource")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.Response{
		Status: "success",
		Code:   http.StatusOK,
		Data:   schedule,
	})
}

// actor pulls the authenticated user id set by the auth middleware
func actor(r *http.Request) (primitive.ObjectID, bool) {
	userID, ok := r.Context().Value(models.ContextKey("user_id")).(string)
	if !ok {
		return primitive.NilObjectID, false
	}
	id, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return primitive.NilObjectID, false
	}
	return id, true
}
