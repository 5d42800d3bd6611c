package routes

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/shandle1/CheckDee-sub000/middleware"
	"github.com/shandle1/CheckDee-sub000/models"
	"github.com/shandle1/CheckDee-sub000/services"
	"github.com/shandle1/CheckDee-sub000/utils"
)

// checkIn handles POST /submissions
func (h *handler) checkIn(c *gin.Context) {
	var req models.CheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	submission, err := h.Lifecycle.CheckIn(c.Request.Context(), services.CheckInInput{
		TaskID:   req.TaskID,
		WorkerID: c.GetUint("user_id"),
		Point:    utils.Location{Latitude: *req.CheckInLatitude, Longitude: *req.CheckInLongitude},
		Accuracy: req.CheckInAccuracy,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, submission)
}

// getSubmission handles GET /submissions/:id
func (h *handler) getSubmission(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	user, _ := middleware.CurrentUser(c)

	view, err := h.Lifecycle.Get(c.Request.Context(), user, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// updateSubmission handles PUT /submissions/:id: notes, evidence and an
// optional check-out in one call.
func (h *handler) updateSubmission(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req models.SubmissionUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	in := services.UpdateInput{
		WorkerNotes:    req.WorkerNotes,
		ChecklistItems: req.ChecklistItems,
		Answers:        req.Answers,
		CheckOut:       req.CheckOut,
	}
	if (req.CheckOutLatitude == nil) != (req.CheckOutLongitude == nil) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   string(services.KindValidation),
			"message": "Invalid request",
			"fields":  gin.H{"check_out_latitude": "latitude and longitude must be sent together"},
		})
		return
	}
	if req.CheckOutLatitude != nil {
		in.CheckOutPoint = &utils.Location{Latitude: *req.CheckOutLatitude, Longitude: *req.CheckOutLongitude}
	}

	view, err := h.Lifecycle.Update(c.Request.Context(), c.GetUint("user_id"), id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// uploadPhoto handles POST /submissions/:id/photos (multipart)
func (h *handler) uploadPhoto(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var form models.PhotoUploadForm
	if err := c.ShouldBind(&form); err != nil {
		respondBindError(c, err)
		return
	}

	header, err := c.FormFile("photo")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   string(services.KindValidation),
			"message": "No photo provided",
			"fields":  gin.H{"photo": "is required"},
		})
		return
	}
	if msg := validateImageHeader(header.Filename, header.Size, h.Config.Uploads.MaxBytes); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   string(services.KindValidation),
			"message": "Invalid photo",
			"fields":  gin.H{"photo": msg},
		})
		return
	}

	file, err := header.Open()
	if err != nil {
		respondError(c, err)
		return
	}
	defer file.Close()

	photo, err := h.Lifecycle.AttachPhoto(c.Request.Context(), c.GetUint("user_id"), id, services.PhotoInput{
		Type:     form.PhotoType,
		Caption:  form.Caption,
		Filename: header.Filename,
		File:     file,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, photo)
}

// reviewSubmission handles POST /submissions/:id/review
func (h *handler) reviewSubmission(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req models.ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	user, _ := middleware.CurrentUser(c)

	review, err := h.Reviews.Decide(c.Request.Context(), user, id, req.Action, req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, review)
}

// listReviews handles GET /submissions/:id/reviews
func (h *handler) listReviews(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	reviews, err := h.Reviews.History(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reviews": reviews})
}

// validateImageHeader checks extension and size before the upload is decoded.
func validateImageHeader(filename string, size, maxBytes int64) string {
	if size <= 0 {
		return "file is empty"
	}
	if maxBytes > 0 && size > maxBytes {
		return "file is too large"
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg", ".png":
		return ""
	default:
		return "must be a JPEG or PNG image"
	}
}
