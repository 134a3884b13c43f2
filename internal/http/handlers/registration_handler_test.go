package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/ignatzorin/signup-backend/internal/models"
	"github.com/ignatzorin/signup-backend/internal/notify"
	"github.com/ignatzorin/signup-backend/internal/service"
	"github.com/ignatzorin/signup-backend/internal/store"
)

// fakeUserDirectory хранит пользователей в памяти.
type fakeUserDirectory struct {
	emails    map[string]bool
	usernames map[string]bool
}

func (f *fakeUserDirectory) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return f.emails[email], nil
}

func (f *fakeUserDirectory) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return f.usernames[username], nil
}

func (f *fakeUserDirectory) Create(ctx context.Context, user *models.User) error {
	user.ID = uuid.New()
	f.emails[user.Email] = true
	f.usernames[user.Username] = true
	return nil
}

type fakeOtpCodes struct {
	codes map[string]string
}

func (f *fakeOtpCodes) Generate(ctx context.Context, email string) (string, error) {
	f.codes[email] = "123456"
	return "123456", nil
}

func (f *fakeOtpCodes) Verify(ctx context.Context, email, candidate string) (bool, error) {
	code, ok := f.codes[email]
	delete(f.codes, email)
	return ok && code == candidate, nil
}

type fakePendingRegistrations struct {
	entries map[string]*models.PendingRegistration
}

func (f *fakePendingRegistrations) Put(ctx context.Context, email string, reg *models.PendingRegistration) error {
	f.entries[email] = reg
	return nil
}

func (f *fakePendingRegistrations) Get(ctx context.Context, email string) (*models.PendingRegistration, error) {
	if reg, ok := f.entries[email]; ok {
		return reg, nil
	}
	return nil, store.ErrPendingNotFound
}

func (f *fakePendingRegistrations) Delete(ctx context.Context, email string) error {
	delete(f.entries, email)
	return nil
}

type fakeOtpDispatcher struct {
	result notify.DispatchResult
}

func (f *fakeOtpDispatcher) Send(ctx context.Context, email, code, purpose string) notify.DispatchResult {
	return f.result
}

type plainHasher struct{}

func (plainHasher) Hash(raw string) (string, error) {
	return "hashed:" + raw, nil
}

func setupRegistrationRouter(dispatchResult notify.DispatchResult) (*gin.Engine, *fakeUserDirectory) {
	gin.SetMode(gin.TestMode)

	dir := &fakeUserDirectory{emails: map[string]bool{}, usernames: map[string]bool{}}
	registration := service.NewRegistrationService(
		dir,
		&fakeOtpCodes{codes: map[string]string{}},
		&fakePendingRegistrations{entries: map[string]*models.PendingRegistration{}},
		&fakeOtpDispatcher{result: dispatchResult},
		plainHasher{},
	)

	handler := NewRegistrationHandler(registration)
	r := gin.New()
	r.POST("/auth/send-otp", handler.SendOtp)
	r.POST("/auth/verify-otp", handler.VerifyOtp)
	return r, dir
}

func postJSON(r *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(body)
	req, _ := http.NewRequest("POST", path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegistrationHandler_SendOtp_InvalidBody(t *testing.T) {
	r, _ := setupRegistrationRouter(notify.DispatchSent)

	req, _ := http.NewRequest("POST", "/auth/send-otp", bytes.NewReader([]byte("не json")))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegistrationHandler_SendOtp_InvalidEmail(t *testing.T) {
	r, _ := setupRegistrationRouter(notify.DispatchSent)

	w := postJSON(r, "/auth/send-otp", gin.H{
		"email":    "не-email",
		"username": "ivan_petrov",
		"password": "Password123",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegistrationHandler_SendOtp_WeakPassword(t *testing.T) {
	r, _ := setupRegistrationRouter(notify.DispatchSent)

	w := postJSON(r, "/auth/send-otp", gin.H{
		"email":    "user@example.com",
		"username": "ivan_petrov",
		"password": "short",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegistrationHandler_SendOtp_Success(t *testing.T) {
	r, _ := setupRegistrationRouter(notify.DispatchSent)

	w := postJSON(r, "/auth/send-otp", gin.H{
		"email":    "user@example.com",
		"username": "ivan_petrov",
		"password": "Password123",
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "message")
}

func TestRegistrationHandler_SendOtp_EmailTaken(t *testing.T) {
	r, dir := setupRegistrationRouter(notify.DispatchSent)
	dir.emails["user@example.com"] = true

	w := postJSON(r, "/auth/send-otp", gin.H{
		"email":    "user@example.com",
		"username": "ivan_petrov",
		"password": "Password123",
	})

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRegistrationHandler_SendOtp_RateLimited(t *testing.T) {
	r, _ := setupRegistrationRouter(notify.DispatchRateLimited)

	w := postJSON(r, "/auth/send-otp", gin.H{
		"email":    "user@example.com",
		"username": "ivan_petrov",
		"password": "Password123",
	})

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestRegistrationHandler_SendOtp_ChannelUnavailable(t *testing.T) {
	r, _ := setupRegistrationRouter(notify.DispatchUnavailable)

	w := postJSON(r, "/auth/send-otp", gin.H{
		"email":    "user@example.com",
		"username": "ivan_petrov",
		"password": "Password123",
	})

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRegistrationHandler_VerifyOtp_InvalidCodeFormat(t *testing.T) {
	r, _ := setupRegistrationRouter(notify.DispatchSent)

	w := postJSON(r, "/auth/verify-otp", gin.H{
		"email": "user@example.com",
		"otp":   "12ab56",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegistrationHandler_VerifyOtp_WrongCode(t *testing.T) {
	r, _ := setupRegistrationRouter(notify.DispatchSent)

	postJSON(r, "/auth/send-otp", gin.H{
		"email":    "user@example.com",
		"username": "ivan_petrov",
		"password": "Password123",
	})

	w := postJSON(r, "/auth/verify-otp", gin.H{
		"email": "user@example.com",
		"otp":   "000000",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegistrationHandler_VerifyOtp_Success(t *testing.T) {
	r, _ := setupRegistrationRouter(notify.DispatchSent)

	postJSON(r, "/auth/send-otp", gin.H{
		"email":    "user@example.com",
		"username": "ivan_petrov",
		"password": "Password123",
	})

	w := postJSON(r, "/auth/verify-otp", gin.H{
		"email": "user@example.com",
		"otp":   "123456",
	})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), "ivan_petrov")
	// Хеш пароля не должен попадать в ответ.
	assert.NotContains(t, w.Body.String(), "hashed:")
}

func TestRegistrationHandler_VerifyOtp_NoPending(t *testing.T) {
	r, _ := setupRegistrationRouter(notify.DispatchSent)

	w := postJSON(r, "/auth/verify-otp", gin.H{
		"email": "user@example.com",
		"otp":   "123456",
	})

	// Кода не выдавалось, проверка падает раньше поиска заявки.
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
