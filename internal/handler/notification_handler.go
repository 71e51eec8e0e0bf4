package handler

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/fallback-dispatch/internal/domain"
	"github.com/kursadbilgin/fallback-dispatch/internal/repository"
	"github.com/kursadbilgin/fallback-dispatch/internal/service"
)

const (
	defaultPage     = 1
	defaultPageSize = 50
	maxPageSize     = 100
)

type NotificationService interface {
	Submit(ctx context.Context, n *domain.Notification) (*domain.Notification, bool, error)
	GetDetails(ctx context.Context, id string) (*service.NotificationDetails, error)
	List(ctx context.Context, params repository.ListParams) ([]domain.Notification, int64, error)
}

type NotificationHandler struct {
	service   NotificationService
	validator *validator.Validate
}

func NewNotificationHandler(service NotificationService) (*NotificationHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("notification service is required")
	}
	return &NotificationHandler{service: service, validator: newRequestValidator()}, nil
}

func RegisterNotificationRoutes(router fiber.Router, service NotificationService) error {
	h, err := NewNotificationHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/notifications", h.CreateNotification)
	v1.Get("/notifications/:id", h.GetNotification)
	v1.Get("/notifications", h.ListNotifications)

	return nil
}

type createNotificationRequest struct {
	RequestID        *string  `json:"requestId" validate:"omitempty,max=255"`
	ToEmail          *string  `json:"toEmail" validate:"omitempty,email,max=254"`
	ToPhone          *string  `json:"toPhone" validate:"omitempty,min=5,max=20"`
	ToTelegramChatID *string  `json:"toTelegramChatId" validate:"omitempty,max=100"`
	Subject          *string  `json:"subject" validate:"omitempty,max=255"`
	Body             string   `json:"body" validate:"required"`
	Channels         []string `json:"channels" validate:"omitempty,dive,oneof=email sms telegram"`
}

type createNotificationResponse struct {
	ID          string  `json:"id"`
	Status      string  `json:"status"`
	UsedChannel *string `json:"usedChannel,omitempty"`
}

type notificationResponse struct {
	ID               string    `json:"id"`
	RequestID        *string   `json:"requestId,omitempty"`
	ToEmail          *string   `json:"toEmail,omitempty"`
	ToPhone          *string   `json:"toPhone,omitempty"`
	ToTelegramChatID *string   `json:"toTelegramChatId,omitempty"`
	Subject          *string   `json:"subject,omitempty"`
	Body             string    `json:"body"`
	Channels         []string  `json:"channels"`
	Status           string    `json:"status"`
	UsedChannel      *string   `json:"usedChannel,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

type notificationDetailResponse struct {
	notificationResponse
	Attempts []attemptResponse `json:"attempts"`
}

type attemptResponse struct {
	Channel      string    `json:"channel"`
	Status       string    `json:"status"`
	ErrorMessage *string   `json:"errorMessage,omitempty"`
	AttemptedAt  time.Time `json:"attemptedAt"`
}

type listNotificationsResponse struct {
	Data []notificationResponse `json:"data"`
	Meta listMeta               `json:"meta"`
}

type listMeta struct {
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
	Total    int64 `json:"total"`
}

func (h *NotificationHandler) CreateNotification(c *fiber.Ctx) error {
	var req createNotificationRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	notification, err := h.requestToDomainNotification(req)
	if err != nil {
		return toHTTPError(err)
	}

	stored, created, err := h.service.Submit(c.UserContext(), &notification)
	if err != nil {
		return toHTTPError(err)
	}

	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
	}

	return c.Status(status).JSON(createNotificationResponse{
		ID:          stored.ID,
		Status:      stored.Status.String(),
		UsedChannel: channelString(stored.UsedChannel),
	})
}

func (h *NotificationHandler) GetNotification(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	details, err := h.service.GetDetails(c.UserContext(), id)
	if err != nil {
		return toHTTPError(err)
	}

	resp := notificationDetailResponse{
		notificationResponse: toNotificationResponse(&details.Notification),
		Attempts:             make([]attemptResponse, 0, len(details.Attempts)),
	}
	for _, a := range details.Attempts {
		resp.Attempts = append(resp.Attempts, attemptResponse{
			Channel:      a.Channel.String(),
			Status:       a.Status.String(),
			ErrorMessage: a.ErrorMessage,
			AttemptedAt:  a.AttemptedAt,
		})
	}

	return c.Status(fiber.StatusOK).JSON(resp)
}

func (h *NotificationHandler) ListNotifications(c *fiber.Ctx) error {
	params, err := parseListParams(c)
	if err != nil {
		return toHTTPError(err)
	}

	notifications, total, err := h.service.List(c.UserContext(), params)
	if err != nil {
		return toHTTPError(err)
	}

	data := make([]notificationResponse, 0, len(notifications))
	for i := range notifications {
		data = append(data, toNotificationResponse(&notifications[i]))
	}

	return c.Status(fiber.StatusOK).JSON(listNotificationsResponse{
		Data: data,
		Meta: listMeta{
			Page:     params.Page,
			PageSize: params.PageSize,
			Total:    total,
		},
	})
}

func parseListParams(c *fiber.Ctx) (repository.ListParams, error) {
	params := repository.ListParams{
		Page:     c.QueryInt("page", defaultPage),
		PageSize: c.QueryInt("pageSize", defaultPageSize),
	}

	if params.Page < 1 {
		return repository.ListParams{}, fmt.Errorf("%w: page must be >= 1", domain.ErrValidation)
	}
	if params.PageSize < 1 || params.PageSize > maxPageSize {
		return repository.ListParams{}, fmt.Errorf("%w: pageSize must be between 1 and %d", domain.ErrValidation, maxPageSize)
	}

	if rawStatus := strings.TrimSpace(c.Query("status")); rawStatus != "" {
		status, err := domain.ParseStatusFromString(rawStatus)
		if err != nil {
			return repository.ListParams{}, err
		}
		params.Status = &status
	}

	if rawChannel := strings.TrimSpace(c.Query("usedChannel")); rawChannel != "" {
		ch, err := domain.ParseChannelFromString(rawChannel)
		if err != nil {
			return repository.ListParams{}, err
		}
		params.UsedChannel = &ch
	}

	from, err := parseRFC3339Query(c.Query("from"), "from")
	if err != nil {
		return repository.ListParams{}, err
	}
	to, err := parseRFC3339Query(c.Query("to"), "to")
	if err != nil {
		return repository.ListParams{}, err
	}
	params.From = from
	params.To = to

	return params, nil
}

func parseRFC3339Query(value string, field string) (*time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}

	t, err := time.Parse(time.RFC3339, trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be RFC3339", domain.ErrValidation, field)
	}
	return &t, nil
}

func (h *NotificationHandler) requestToDomainNotification(req createNotificationRequest) (domain.Notification, error) {
	req.RequestID = trimOptional(req.RequestID)
	req.ToEmail = trimOptional(req.ToEmail)
	req.ToPhone = trimOptional(req.ToPhone)
	req.ToTelegramChatID = trimOptional(req.ToTelegramChatID)
	req.Subject = trimOptional(req.Subject)
	req.Body = strings.TrimSpace(req.Body)

	// An explicit empty list is rejected; an absent one means the default order.
	if req.Channels != nil && len(req.Channels) == 0 {
		return domain.Notification{}, fmt.Errorf("%w: channels must not be empty when provided", domain.ErrValidation)
	}
	for i := range req.Channels {
		req.Channels[i] = strings.ToLower(strings.TrimSpace(req.Channels[i]))
	}

	if err := h.validator.Struct(req); err != nil {
		return domain.Notification{}, validationError(err)
	}

	channels := make([]domain.Channel, 0, len(req.Channels))
	for _, raw := range req.Channels {
		channels = append(channels, domain.Channel(raw))
	}

	return domain.Notification{
		RequestID:        req.RequestID,
		ToEmail:          req.ToEmail,
		ToPhone:          req.ToPhone,
		ToTelegramChatID: req.ToTelegramChatID,
		Subject:          req.Subject,
		Body:             req.Body,
		Channels:         channels,
	}, nil
}

func newRequestValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		req, ok := sl.Current().Interface().(createNotificationRequest)
		if !ok {
			return
		}
		if req.ToEmail == nil && req.ToPhone == nil && req.ToTelegramChatID == nil {
			sl.ReportError(req.ToEmail, "toEmail", "ToEmail", "contact_required", "")
		}
	}, createNotificationRequest{})
	return v
}

func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	messages := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		messages = append(messages, fieldErrorMessage(fe))
	}
	return fmt.Errorf("%w: %s", domain.ErrValidation, strings.Join(messages, "; "))
}

func fieldErrorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "contact_required":
		return "at least one contact method must be provided (toEmail, toPhone or toTelegramChatId)"
	case "required":
		return fe.Field() + " is required"
	case "email":
		return fe.Field() + " must be a valid email address"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	case "min", "max":
		return fmt.Sprintf("%s violates %s=%s", fe.Field(), fe.Tag(), fe.Param())
	default:
		return fe.Field() + " is invalid"
	}
}

func trimOptional(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func channelString(ch *domain.Channel) *string {
	if ch == nil {
		return nil
	}
	s := ch.String()
	return &s
}

func toNotificationResponse(n *domain.Notification) notificationResponse {
	if n == nil {
		return notificationResponse{}
	}

	channels := make([]string, 0, len(n.Channels))
	for _, ch := range n.Channels {
		channels = append(channels, ch.String())
	}

	return notificationResponse{
		ID:               n.ID,
		RequestID:        n.RequestID,
		ToEmail:          n.ToEmail,
		ToPhone:          n.ToPhone,
		ToTelegramChatID: n.ToTelegramChatID,
		Subject:          n.Subject,
		Body:             n.Body,
		Channels:         channels,
		Status:           n.Status.String(),
		UsedChannel:      channelString(n.UsedChannel),
		CreatedAt:        n.CreatedAt,
		UpdatedAt:        n.UpdatedAt,
	}
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return err
	}
}
