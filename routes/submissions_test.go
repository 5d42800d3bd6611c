package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/shandle1/CheckDee-sub000/config"
	"github.com/shandle1/CheckDee-sub000/database"
	"github.com/shandle1/CheckDee-sub000/models"
	"github.com/shandle1/CheckDee-sub000/services"
	"github.com/shandle1/CheckDee-sub000/websocket"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type apiFixture struct {
	t      *testing.T
	db     *gorm.DB
	router *gin.Engine
	tokens map[string]string
	users  map[string]*models.User
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	db, err := database.OpenSQLite("file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared")
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Uploads.Dir = t.TempDir()
	cfg.Uploads.MaxDimension = 64

	tokens := services.NewJWTService("route-test-secret", 1)
	evidence := services.NewEvidenceStore(db)
	storage := services.NewLocalStorage(cfg.Uploads.Dir, cfg.Uploads.PublicPath)

	router := NewRouter(Dependencies{
		Config:        cfg,
		DB:            db,
		Tokens:        tokens,
		Tasks:         services.NewTaskService(db, cfg.Lifecycle.MinRadiusMeters, cfg.Lifecycle.MaxRadiusMeters),
		Lifecycle:     services.NewSubmissionLifecycle(db, evidence, storage, services.NopPublisher{}, services.LifecyclePolicy{MaxPhotoDimension: cfg.Uploads.MaxDimension}),
		Reviews:       services.NewReviewGate(db, services.NopPublisher{}),
		Notifications: services.NewNotificationService(db, nil, nil),
		Hub:           websocket.NewHub(),
	})

	f := &apiFixture{t: t, db: db, router: router, tokens: map[string]string{}, users: map[string]*models.User{}}
	for name, role := range map[string]models.UserRole{
		"worker":   models.RoleWorker,
		"other":    models.RoleWorker,
		"reviewer": models.RoleReviewer,
	} {
		u := &models.User{FullName: name, Email: name + "@example.com", PasswordHash: "x", Role: role, IsActive: true}
		require.NoError(t, db.Create(u).Error)
		token, err := tokens.GenerateAccessToken(u)
		require.NoError(t, err)
		f.users[name] = u
		f.tokens[name] = token
	}
	return f
}

func (f *apiFixture) do(as, method, path string, body interface{}) (int, map[string]interface{}) {
	f.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(f.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return f.send(as, req)
}

func (f *apiFixture) send(as string, req *http.Request) (int, map[string]interface{}) {
	f.t.Helper()
	if as != "" {
		req.Header.Set("Authorization", "Bearer "+f.tokens[as])
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var out map[string]interface{}
	if w.Body.Len() > 0 {
		require.NoError(f.t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w.Code, out
}

func (f *apiFixture) createTask() uint {
	f.t.Helper()
	status, body := f.do("reviewer", http.MethodPost, "/api/v1/tasks", gin.H{
		"title":              "Inspect fountain",
		"latitude":           13.7469,
		"longitude":          100.5398,
		"radius_meters":      100,
		"assigned_worker_id": f.users["worker"].ID,
		"checklist_items":    []gin.H{{"text": "Pump running", "is_critical": true}},
		"questions": []gin.H{
			{"text": "Water clear?", "type": "yes_no", "is_required": true},
			{"text": "Condition", "type": "single_choice", "options": []string{"good", "poor"}},
		},
	})
	require.Equal(f.t, http.StatusCreated, status, body)
	return uint(body["id"].(float64))
}

func checkInBody(taskID uint, lat, lng float64) gin.H {
	return gin.H{"task_id": taskID, "check_in_latitude": lat, "check_in_longitude": lng}
}

func TestSubmissionHappyPath(t *testing.T) {
	f := newAPIFixture(t)
	taskID := f.createTask()

	status, body := f.do("worker", http.MethodPost, "/api/v1/submissions", checkInBody(taskID, 13.7469, 100.5399))
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, "in_progress", body["status"])
	assert.InDelta(t, 10.8, body["check_in_distance"].(float64), 0.1)
	id := uint(body["id"].(float64))

	var task models.Task
	require.NoError(t, f.db.Preload("ChecklistItems").Preload("Questions").First(&task, taskID).Error)

	status, body = f.do("worker", http.MethodPut, fmt.Sprintf("/api/v1/submissions/%d", id), gin.H{
		"worker_notes":    "Pump replaced",
		"checklist_items": []gin.H{{"checklist_item_id": task.ChecklistItems[0].ID, "completed": true}},
		"answers":         []gin.H{{"question_id": task.Questions[0].ID, "answer": true}},
		"check_out":       true,
	})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "pending", body["status"])
	assert.Equal(t, "Pump replaced", body["worker_notes"])
	assert.NotNil(t, body["submitted_at"])

	status, body = f.do("worker", http.MethodPut, fmt.Sprintf("/api/v1/submissions/%d", id), gin.H{"check_out": true})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "invalid_state", body["error"])
	assert.Equal(t, "pending", body["current_state"])

	status, _ = f.do("worker", http.MethodPost, fmt.Sprintf("/api/v1/submissions/%d/review", id), gin.H{"action": "approved"})
	assert.Equal(t, http.StatusForbidden, status)

	status, body = f.do("reviewer", http.MethodPost, fmt.Sprintf("/api/v1/submissions/%d/review", id), gin.H{"action": "rejected", "notes": "Photos missing"})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "rejected", body["action"])

	status, body = f.do("reviewer", http.MethodGet, fmt.Sprintf("/api/v1/submissions/%d/reviews", id), nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Len(t, body["reviews"], 1)

	status, body = f.do("reviewer", http.MethodGet, fmt.Sprintf("/api/v1/tasks/%d", taskID), nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "rejected", body["status"])
}

func TestCheckInErrors(t *testing.T) {
	f := newAPIFixture(t)
	taskID := f.createTask()

	status, body := f.do("worker", http.MethodPost, "/api/v1/submissions", checkInBody(taskID, 13.75, 100.55))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "geofence_violation", body["error"])
	assert.InDelta(t, 1154.36, body["distance"].(float64), 0.5)
	assert.Equal(t, 100.0, body["allowed_radius"])

	status, body = f.do("other", http.MethodPost, "/api/v1/submissions", checkInBody(taskID, 13.7469, 100.5399))
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "forbidden", body["error"])

	status, body = f.do("worker", http.MethodPost, "/api/v1/submissions", checkInBody(9999, 13.7469, 100.5399))
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "not_found", body["error"])

	status, body = f.do("worker", http.MethodPost, "/api/v1/submissions", gin.H{"task_id": taskID, "check_in_latitude": 95, "check_in_longitude": 100.5})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "validation_error", body["error"])
	assert.Contains(t, body["fields"], "check_in_latitude")

	status, body = f.do("worker", http.MethodPost, "/api/v1/submissions", gin.H{"task_id": taskID})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["fields"], "check_in_longitude")

	status, _ = f.do("worker", http.MethodPost, "/api/v1/submissions", checkInBody(taskID, 13.7469, 100.5399))
	require.Equal(t, http.StatusCreated, status)
	status, body = f.do("worker", http.MethodPost, "/api/v1/submissions", checkInBody(taskID, 13.7469, 100.5399))
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "conflict", body["error"])

	status, _ = f.do("", http.MethodPost, "/api/v1/submissions", checkInBody(taskID, 13.7469, 100.5399))
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestPhotoUpload(t *testing.T) {
	f := newAPIFixture(t)
	taskID := f.createTask()
	status, body := f.do("worker", http.MethodPost, "/api/v1/submissions", checkInBody(taskID, 13.7469, 100.5399))
	require.Equal(t, http.StatusCreated, status, body)
	id := uint(body["id"].(float64))

	upload := func(filename, photoType string) (int, map[string]interface{}) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		require.NoError(t, mw.WriteField("photo_type", photoType))
		require.NoError(t, mw.WriteField("caption", "Front view"))
		part, err := mw.CreateFormFile("photo", filename)
		require.NoError(t, err)
		require.NoError(t, png.Encode(part, imaging.New(128, 96, color.NRGBA{R: 200, A: 255})))
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/v1/submissions/%d/photos", id), &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		return f.send("worker", req)
	}

	status, body = upload("front.png", "before")
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, "before", body["photo_type"])
	assert.Equal(t, 1.0, body["position"])
	assert.True(t, strings.HasPrefix(body["url"].(string), "/uploads/submission_"))

	status, body = upload("front.gif", "before")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["fields"], "photo")

	status, body = upload("front.png", "during")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["fields"], "photo_type")

	status, body = f.do("worker", http.MethodGet, fmt.Sprintf("/api/v1/submissions/%d", id), nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, map[string]interface{}{"before": 1.0, "after": 0.0}, body["photo_counts"])
}

func TestTaskEndpoints(t *testing.T) {
	f := newAPIFixture(t)
	taskID := f.createTask()

	status, body := f.do("worker", http.MethodGet, "/api/v1/tasks/mine", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["tasks"], 1)

	status, _ = f.do("other", http.MethodGet, fmt.Sprintf("/api/v1/tasks/%d", taskID), nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = f.do("worker", http.MethodPost, "/api/v1/tasks", gin.H{"title": "x"})
	assert.Equal(t, http.StatusForbidden, status)

	status, body = f.do("reviewer", http.MethodPost, "/api/v1/tasks", gin.H{
		"title": "Too wide", "latitude": 13.7, "longitude": 100.5, "radius_meters": 50000,
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["fields"], "radius_meters")
}

func TestHealth(t *testing.T) {
	f := newAPIFixture(t)
	status, body := f.do("", http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
}
