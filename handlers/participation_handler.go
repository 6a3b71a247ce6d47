package handlers

import (
	"net/http"

	"github.com/Malyadmin/Maly-Platforms-Inc.-sub001/middleware"
	"github.com/Malyadmin/Maly-Platforms-Inc.-sub001/models"
	"github.com/Malyadmin/Maly-Platforms-Inc.-sub001/services"
)

type ParticipationHandler struct {
	participationService services.ParticipationService
}

func NewParticipationHandler(ps services.ParticipationService) *ParticipationHandler {
	return &ParticipationHandler{participationService: ps}
}

type rsvpInput struct {
	Status string `json:"status"`
}

// RSVP godoc
// @Summary RSVP to an event
// @Tags participation
// @Description Private events turn an attending RSVP into an application for the host to review.
// @Accept json
// @Produce json
// @Param eventId path int true "Event ID"
// @Param input body rsvpInput true "attending or interested"
// @Success 200 {object} map[string]interface{} "participation"
// @Failure 400 {object} map[string]interface{} "Invalid status or event full"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Event not found"
// @Failure 409 {object} map[string]string "Already applied, attending or rejected"
// @Security BearerAuth
// @Router /events/{eventId}/participation [post]
func (h *ParticipationHandler) RSVP(w http.ResponseWriter, r *http.Request) {
	eventID, err := getIDFromURL(r, "eventId")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	var input rsvpInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	status, err := models.RSVPStatus(input.Status)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	participation, err := h.participationService.RSVP(r.Context(), eventID, currentUserID, status)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"participation": participation}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Cancel godoc
// @Summary Withdraw from an event
// @Tags participation
// @Produce json
// @Param eventId path int true "Event ID"
// @Success 200 {object} map[string]interface{} "participation"
// @Failure 400 {object} map[string]string "Nothing to withdraw from"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "No participation"
// @Security BearerAuth
// @Router /events/{eventId}/participation [delete]
func (h *ParticipationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	eventID, err := getIDFromURL(r, "eventId")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	participation, err := h.participationService.Cancel(r.Context(), eventID, currentUserID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"participation": participation}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Get godoc
// @Summary Get the current user's participation in an event
// @Tags participation
// @Produce json
// @Param eventId path int true "Event ID"
// @Success 200 {object} map[string]interface{} "participation"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "No participation"
// @Security BearerAuth
// @Router /events/{eventId}/participation [get]
func (h *ParticipationHandler) Get(w http.ResponseWriter, r *http.Request) {
	eventID, err := getIDFromURL(r, "eventId")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	participation, err := h.participationService.Get(r.Context(), eventID, currentUserID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"participation": participation}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
