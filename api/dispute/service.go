package dispute

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"parkhive-bend/apperr"
	"parkhive-bend/dao"
	"parkhive-bend/dispute"
	"parkhive-bend/models"
	"parkhive-bend/utils"
	"parkhive-bend/utils/notifications"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Service represents the Dispute Service
type Service struct {
	workflow   *dispute.Workflow
	dao        *dao.DisputeDAO
	bookingDAO *dao.BookingDAO
	factoryDAO *dao.FactoryDAO
	notifiable notifications.Notifiable
}

// NewDisputeService returns a new dispute service. notifiable may be nil when
// the fan-out could not be initialized.
func NewDisputeService(workflow *dispute.Workflow, disputeDAO *dao.DisputeDAO, bookingDAO *dao.BookingDAO, factoryDAO *dao.FactoryDAO, notifiable notifications.Notifiable) *Service {
	return &Service{
		workflow:   workflow,
		dao:        disputeDAO,
		bookingDAO: bookingDAO,
		factoryDAO: factoryDAO,
		notifiable: notifiable,
	}
}

// OpenDispute raises a dispute over a booking's escrowed funds
func (s *Service) OpenDispute(w http.ResponseWriter, r *http.Request) {
	var req models.OpenDisputeReq
	err := utils.DecodeReq(r, &req)
	if err != nil {
		log.Printf("error decoding open_dispute req: %v", err)
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request data sent")
		return
	}

	actorID, ok := actor(r)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Invalid user identity")
		return
	}

	opened, err := s.workflow.Open(r.Context(), actorID, req)
	if err != nil {
		log.Printf("open_dispute: %v", err)
		utils.RespondWithAppError(w, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusCreated, utils.Response{
		Status: "success",
		Code:   http.StatusCreated,
		Data:   opened,
	})
}

// ResolveDispute settles an open dispute. Admin only; funds move before the
// dispute flips to resolved, so a processor failure leaves it open for retry.
func (s *Service) ResolveDispute(w http.ResponseWriter, r *http.Request) {
	disputeID, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid dispute ID")
		return
	}

	var req models.ResolveDisputeReq
	if err := utils.DecodeReq(r, &req); err != nil {
		log.Printf("error decoding resolve_dispute req: %v", err)
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request data sent")
		return
	}

	actorID, ok := actor(r)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Invalid user identity")
		return
	}

	user, err := s.factoryDAO.FindUser(r.Context(), actorID)
	if err != nil || !user.Admin {
		utils.RespondWithError(w, http.StatusForbidden, "Operation not available to user")
		return
	}

	resolved, err := s.workflow.Resolve(r.Context(), disputeID, actorID, req)
	if err != nil {
		log.Printf("resolve_dispute: %v", err)
		if apperr.Is(err, apperr.PaymentProcessor) {
			s.notifyDelayed(disputeID)
		}
		utils.RespondWithAppError(w, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.Response{
		Status: "success",
		Code:   http.StatusOK,
		Data:   resolved,
	})
}

// ViewDispute ...
func (s *Service) ViewDispute(w http.ResponseWriter, r *http.Request) {
	disputeID, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid dispute ID")
		return
	}

	d, err := s.dao.FindByID(r.Context(), disputeID)
	if err != nil {
		log.Printf("view_dispute: failed to retrieve dispute: %v", err)
		utils.RespondWithError(w, http.StatusNotFound, "Dispute not found")
		return
	}

	actorID, ok := actor(r)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Invalid user identity")
		return
	}

	if !s.canView(r, d, actorID) {
		utils.RespondWithError(w, http.StatusForbidden, "Operation not available to user")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.Response{
		Status: "success",
		Code:   http.StatusOK,
		Data:   d,
	})
}

// notifyDelayed tells the raiser their resolution is pending a payment retry
func (s *Service) notifyDelayed(disputeID primitive.ObjectID) {
	if s.notifiable == nil {
		return
	}
	d, err := s.dao.FindByID(context.Background(), disputeID)
	if err != nil {
		log.Printf("resolve_dispute: failed to retrieve dispute for delay notice: %v", err)
		return
	}
	go s.notifiable.SendGenericNotification(d.RaisedBy.Hex(), "Dispute resolution delayed",
		notifications.GenericEmailData{
			Content: fmt.Sprintf("The resolution of your dispute %s could not be completed with the payment provider and will be retried shortly.", disputeID.Hex()),
		})
}

// canView allows the raiser, either booking party or an admin
func (s *Service) canView(r *http.Request, d models.Dispute, actorID primitive.ObjectID) bool {
	if d.RaisedBy == actorID {
		return true
	}
	if booking, err := s.bookingDAO.FindByID(r.Context(), d.BookingID); err == nil {
		if booking.RequesterID == actorID || booking.OwnerID == actorID {
			return true
		}
	}
	user, err := s.factoryDAO.FindUser(r.Context(), actorID)
	return err == nil && user.Admin
}

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
