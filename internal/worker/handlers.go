package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ds124wfegd/tithi-booking/internal/entity"
	"github.com/ds124wfegd/tithi-booking/pkg/kafka"
	"github.com/sirupsen/logrus"
)

// ErrForcedFailure is returned for events whose payload asks for a failure.
var ErrForcedFailure = errors.New("forced failure requested by payload")

// Handler delivers one outbox event to its destination.
type Handler interface {
	Handle(ctx context.Context, event *entity.OutboxEvent) error
}

type HandlerFunc func(ctx context.Context, event *entity.OutboxEvent) error

func (f HandlerFunc) Handle(ctx context.Context, event *entity.OutboxEvent) error {
	return f(ctx, event)
}

type route struct {
	prefix  string
	handler Handler
}

// Router picks a handler by event code prefix. Events that match no prefix
// count as delivered.
type Router struct {
	routes []route
}

func NewRouter() *Router {
	return &Router{}
}

// Register adds a route. Routed handlers fail events that carry
// payload.force_fail = true.
func (r *Router) Register(prefix string, h Handler) *Router {
	r.routes = append(r.routes, route{prefix: prefix, handler: forceFail(h)})
	return r
}

func (r *Router) Handle(ctx context.Context, event *entity.OutboxEvent) error {
	for _, rt := range r.routes {
		if event.HasPrefix(rt.prefix) {
			return rt.handler.Handle(ctx, event)
		}
	}
	logrus.WithFields(logrus.Fields{
		"event_id":   event.ID,
		"event_code": event.EventCode,
	}).Debug("No handler for event code, treating as delivered")
	return nil
}

func forceFail(h Handler) Handler {
	return HandlerFunc(func(ctx context.Context, event *entity.OutboxEvent) error {
		if event.Payload.Bool("force_fail") {
			return ErrForcedFailure
		}
		return h.Handle(ctx, event)
	})
}

// LogHandler stands in for a destination that is not configured.
func LogHandler(destination string) Handler {
	return HandlerFunc(func(ctx context.Context, event *entity.OutboxEvent) error {
		logrus.WithFields(logrus.Fields{
			"destination": destination,
			"tenant_id":   event.TenantID,
			"event_id":    event.ID,
			"event_code":  event.EventCode,
			"payload":     map[string]interface{}(event.Payload),
		}).Info("Event delivered to log")
		return nil
	})
}

// Notifier is satisfied by *telegram.Bot.
type Notifier interface {
	SendMessage(ctx context.Context, chatID, text string) error
}

type notifyHandler struct {
	notifier Notifier
	chatID   string
}

func NewNotifyHandler(notifier Notifier, chatID string) Handler {
	return &notifyHandler{notifier: notifier, chatID: chatID}
}

func (h *notifyHandler) Handle(ctx context.Context, event *entity.OutboxEvent) error {
	return h.notifier.SendMessage(ctx, h.chatID, notificationText(event))
}

func notificationText(event *entity.OutboxEvent) string {
	p := event.Payload
	switch event.EventCode {
	case entity.EventNotifyBookingConfirmed:
		return fmt.Sprintf("Booking confirmed\n"+
			"Service: %v\n"+
			"Time: %v - %v\n"+
			"Booking: #%v", p["service_name"], p["start_at"], p["end_at"], p["booking_id"])
	case entity.EventNotifyBookingCanceled:
		return fmt.Sprintf("Booking canceled\n"+
			"Time: %v - %v\n"+
			"Booking: #%v", p["start_at"], p["end_at"], p["booking_id"])
	case entity.EventNotifyWaitlistOpened:
		return fmt.Sprintf("A slot you were waiting for is open\n"+
			"Time: %v - %v\n"+
			"Customer: %v", p["start_at"], p["end_at"], p["customer_id"])
	}
	return fmt.Sprintf("%s: %v", event.EventCode, map[string]interface{}(p))
}

// envelope is the wire shape shared by the webhook, analytics and broker
// destinations.
type envelope struct {
	ID        string                 `json:"id"`
	TenantID  string                 `json:"tenant_id"`
	EventCode string                 `json:"event_code"`
	Payload   map[string]interface{} `json:"payload"`
	CreatedAt time.Time              `json:"created_at"`
}

func newEnvelope(event *entity.OutboxEvent) envelope {
	return envelope{
		ID:        event.ID,
		TenantID:  event.TenantID,
		EventCode: event.EventCode,
		Payload:   event.Payload,
		CreatedAt: event.CreatedAt,
	}
}

type webhookHandler struct {
	url    string
	client *http.Client
}

func NewWebhookHandler(url string, timeout time.Duration) Handler {
	return &webhookHandler{url: url, client: &http.Client{Timeout: timeout}}
}

func (h *webhookHandler) Handle(ctx context.Context, event *entity.OutboxEvent) error {
	body, err := json.Marshal(newEnvelope(event))
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-Code", event.EventCode)
	req.Header.Set("X-Event-ID", event.ID)

	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook responded with %s", resp.Status)
	}
	return nil
}

type analyticsHandler struct {
	producer kafka.Producer
}

func NewAnalyticsHandler(producer kafka.Producer) Handler {
	return &analyticsHandler{producer: producer}
}

func (h *analyticsHandler) Handle(ctx context.Context, event *entity.OutboxEvent) error {
	return h.producer.SendMessage(ctx, event.TenantID, newEnvelope(event))
}

// Publisher is satisfied by *mq.Publisher.
type Publisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
}

type brokerHandler struct {
	publisher Publisher
}

func NewBrokerHandler(publisher Publisher) Handler {
	return &brokerHandler{publisher: publisher}
}

func (h *brokerHandler) Handle(ctx context.Context, event *entity.OutboxEvent) error {
	return h.publisher.PublishJSON(ctx, RoutingKey(event.EventCode), newEnvelope(event))
}

// RoutingKey maps BOOKING_CHECKED_IN to booking.checked_in.
func RoutingKey(code string) string {
	lower := strings.ToLower(code)
	if i := strings.IndexByte(lower, '_'); i >= 0 {
		return lower[:i] + "." + lower[i+1:]
	}
	return lower
}
