package handlers

import (
	"net/http"

	"github.com/Malyadmin/Maly-Platforms-Inc.-sub001/middleware"
	"github.com/Malyadmin/Maly-Platforms-Inc.-sub001/models"
	"github.com/Malyadmin/Maly-Platforms-Inc.-sub001/services"
)

type ApplicationHandler struct {
	applicationService services.ApplicationService
}

func NewApplicationHandler(as services.ApplicationService) *ApplicationHandler {
	return &ApplicationHandler{applicationService: as}
}

type reviewApplicationInput struct {
	Status string `json:"status"`
}

// ListPending godoc
// @Summary List pending applications for an event
// @Tags applications
// @Produce json
// @Param eventId path int true "Event ID"
// @Success 200 {object} services.PendingApplications
// @Failure 400 {object} map[string]string "Invalid event id"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Not the event host"
// @Failure 404 {object} map[string]string "Event not found"
// @Security BearerAuth
// @Router /events/{eventId}/applications [get]
func (h *ApplicationHandler) ListPending(w http.ResponseWriter, r *http.Request) {
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

	result, err := h.applicationService.ListPending(r.Context(), eventID, currentUserID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, result, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Review godoc
// @Summary Approve or reject an application
// @Tags applications
// @Description Approving moves the applicant to attending and counts their tickets against capacity.
// @Accept json
// @Produce json
// @Param eventId path int true "Event ID"
// @Param userId path int true "Applicant user ID"
// @Param input body reviewApplicationInput true "Decision: approved or rejected"
// @Success 200 {object} services.ReviewResult
// @Failure 400 {object} map[string]interface{} "Invalid status, transition or capacity exceeded"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Not the event host"
// @Failure 404 {object} map[string]string "Event or application not found"
// @Security BearerAuth
// @Router /events/{eventId}/applications/{userId} [put]
func (h *ApplicationHandler) Review(w http.ResponseWriter, r *http.Request) {
	eventID, err := getIDFromURL(r, "eventId")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	applicantID, err := getIDFromURL(r, "userId")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	var input reviewApplicationInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	action, err := models.ParseAction(input.Status)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	result, err := h.applicationService.Review(r.Context(), eventID, applicantID, currentUserID, action)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, result, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListAll godoc
// @Summary List pending and completed applications across the host's events
// @Tags applications
// @Produce json
// @Success 200 {object} services.HostApplications
// @Failure 401 {object} map[string]string "Unauthorized"
// @Security BearerAuth
// @Router /events/applications [get]
func (h *ApplicationHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	result, err := h.applicationService.ListAll(r.Context(), currentUserID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, result, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
