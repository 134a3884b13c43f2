package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/signup-backend/internal/notify"
	"github.com/ignatzorin/signup-backend/internal/service"
	"github.com/ignatzorin/signup-backend/internal/validation"
)

// RegistrationHandler предоставляет HTTP слой двухфазной регистрации.
type RegistrationHandler struct {
	registration *service.RegistrationService
}

// NewRegistrationHandler создаёт хэндлер.
func NewRegistrationHandler(registration *service.RegistrationService) *RegistrationHandler {
	return &RegistrationHandler{registration: registration}
}

// SendOtp обрабатывает POST /auth/send-otp: первая фаза регистрации.
func (h *RegistrationHandler) SendOtp(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Валидация email
	if err := validation.ValidateEmail(req.Email); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Валидация username
	if err := validation.ValidateUsername(req.Username); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Валидация пароля
	if err := validation.ValidatePassword(req.Password); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.registration.Initiate(c.Request.Context(), service.InitiateInput{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	// Отказ канала доставки — это ответ пользователю, а не откат заявки:
	// данные регистрации остаются сохранёнными до истечения TTL.
	switch result {
	case notify.DispatchRateLimited:
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "слишком много запросов, попробуйте позже"})
	case notify.DispatchUnavailable:
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "сервис уведомлений недоступен, код не отправлен"})
	default:
		c.JSON(http.StatusOK, gin.H{"message": "код подтверждения отправлен на email"})
	}
}

// VerifyOtp обрабатывает POST /auth/verify-otp: вторая фаза регистрации.
func (h *RegistrationHandler) VerifyOtp(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required"`
		Otp   string `json:"otp" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Валидация email
	if err := validation.ValidateEmail(req.Email); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Валидация формата кода
	if err := validation.ValidateOtpCode(req.Otp); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.registration.Confirm(c.Request.Context(), req.Email, req.Otp)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "пользователь успешно зарегистрирован",
		"user":    user,
	})
}
