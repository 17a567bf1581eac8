package mqttrpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-sqlbridge/internal/command"
	"github.com/nerrad567/gray-logic-sqlbridge/internal/infrastructure/mqtt"
)

const (
	defaultRequestTimeout = 30 * time.Second
	defaultQoS            = 1
)

// MQTTClient is the part of *mqtt.Client the responder needs.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// Dispatcher runs decoded commands. *command.Dispatcher implements it.
type Dispatcher interface {
	DispatchRaw(ctx context.Context, op string, args json.RawMessage) (any, error)
}

// Logger defines the logging interface used by the responder.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options configures a Responder.
type Options struct {
	Client     MQTTClient
	Dispatcher Dispatcher
	Topics     mqtt.Topics

	// QoS for subscriptions, responses and events. Zero uses QoS 1.
	QoS byte

	// RequestTimeout bounds a single command. Zero uses 30s.
	RequestTimeout time.Duration

	Logger Logger
}

// Responder serves commands received over MQTT and publishes change events.
//
// Each request is answered on its reply topic with a ResponseMessage. The
// responder also implements command.Notifier: every ChangeEvent is
// published to <prefix>/event/<database>.
type Responder struct {
	client     MQTTClient
	dispatcher Dispatcher
	topics     mqtt.Topics
	qos        byte
	timeout    time.Duration
	logger     Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	started bool
}

// New creates a Responder. Call Start to begin serving.
func New(opts Options) (*Responder, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}
	if opts.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}

	r := &Responder{
		client:     opts.Client,
		dispatcher: opts.Dispatcher,
		topics:     opts.Topics,
		qos:        opts.QoS,
		timeout:    opts.RequestTimeout,
		logger:     opts.Logger,
	}
	if r.qos == 0 {
		r.qos = defaultQoS
	}
	if r.timeout <= 0 {
		r.timeout = defaultRequestTimeout
	}
	if r.logger == nil {
		r.logger = noopLogger{}
	}
	r.ctx, r.cancel = context.WithCancel(context.Background())
	return r, nil
}

// Start subscribes to the request topic.
func (r *Responder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return nil
	}

	topic := r.topics.AllRequests()
	if err := r.client.Subscribe(topic, r.qos, r.handleMessage); err != nil {
		return fmt.Errorf("subscribe to requests: %w", err)
	}
	r.started = true

	r.logger.Info("mqtt responder started", "topic", topic)
	return nil
}

// Stop unsubscribes, cancels in-flight commands and waits for their replies.
func (r *Responder) Stop() {
	r.mu.Lock()
	started := r.started
	r.started = false
	r.cancel()
	r.mu.Unlock()

	if started {
		if err := r.client.Unsubscribe(r.topics.AllRequests()); err != nil {
			r.logger.Warn("unsubscribing from requests", "error", err)
		}
	}
	r.wg.Wait()

	r.logger.Info("mqtt responder stopped")
}

// handleMessage decodes one request, dispatches it and publishes the reply.
func (r *Responder) handleMessage(topic string, payload []byte) error {
	op, ok := r.topics.OpFromRequest(topic)
	if !ok {
		return fmt.Errorf("unexpected request topic %q", topic)
	}

	var req RequestMessage
	if err := json.Unmarshal(payload, &req); err != nil {
		return fmt.Errorf("parsing request on %s: %w", topic, err)
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	if !r.track() {
		return nil
	}
	defer r.wg.Done()

	ctx, cancel := context.WithTimeout(r.ctx, r.timeout)
	defer cancel()

	r.logger.Debug("mqtt request received", "id", req.ID, "op", op)

	result, err := r.dispatcher.DispatchRaw(ctx, op, req.Args)
	resp := ResponseMessage{
		ID:        req.ID,
		OK:        err == nil,
		Timestamp: time.Now().UTC(),
	}
	if err != nil {
		resp.Error = &ResponseError{Code: command.ErrorCode(err), Message: err.Error()}
	} else {
		resp.Result = result
	}

	replyTo := req.ReplyTo
	if replyTo == "" {
		replyTo = r.topics.Response(req.ID)
	}
	return r.reply(replyTo, resp)
}

// reply publishes resp on topic. A reply that cannot be published, usually
// because the result is over the payload limit, is replaced by an error
// response so the caller is not left waiting for its timeout.
func (r *Responder) reply(topic string, resp ResponseMessage) error {
	err := r.publishJSON(topic, resp)
	if err == nil {
		return nil
	}
	r.logger.Warn("publishing mqtt reply", "id", resp.ID, "topic", topic, "error", err)

	code := command.CodeInternal
	if errors.Is(err, mqtt.ErrPayloadTooLarge) {
		code = command.CodeResultTooLarge
	}
	fallback := ResponseMessage{
		ID:        resp.ID,
		Error:     &ResponseError{Code: code, Message: err.Error()},
		Timestamp: time.Now().UTC(),
	}
	if ferr := r.publishJSON(topic, fallback); ferr != nil {
		return fmt.Errorf("%w (error reply also failed: %w)", err, ferr)
	}
	return nil
}

// NotifyChange publishes ev on the database's event topic.
// The publish runs in the background so the command path never waits on the
// broker.
func (r *Responder) NotifyChange(ev command.ChangeEvent) {
	if !r.track() {
		return
	}
	go func() {
		defer r.wg.Done()
		if err := r.publishJSON(r.topics.Event(ev.Database), ev); err != nil {
			r.logger.Warn("publishing change event", "database", ev.Database, "error", err)
		}
	}()
}

// track registers in-flight work unless the responder is stopped.
func (r *Responder) track() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ctx.Err() != nil {
		return false
	}
	r.wg.Add(1)
	return true
}

func (r *Responder) publishJSON(topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding message for %s: %w", topic, err)
	}
	if err := mqtt.CheckPayloadSize(payload); err != nil {
		return fmt.Errorf("publishing to %s: %w", topic, err)
	}
	if err := r.client.Publish(topic, payload, r.qos, false); err != nil {
		return fmt.Errorf("publishing to %s: %w", topic, err)
	}
	return nil
}
