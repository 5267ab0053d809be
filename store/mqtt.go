package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/angas/awattar-go/types"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const publishTimeout = 5 * time.Second

type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

type MQTTOptions struct {
	Host        string
	Port        int
	Username    string
	Password    string
	ClientId    string
	TopicPrefix string
	Qos         byte
}

// MQTT publishes the state tree as retained messages, "prices.0.start" ends up
// on "<prefix>/prices/0/start" and its declaration on "<prefix>/prices/0/start/$meta".
type MQTT struct {
	logger    *slog.Logger
	client    mqtt.Client
	pub       publisher
	prefix    string
	qos       byte
	mu        sync.Mutex
	declared  map[string]struct{}
	published map[string]struct{}
}

func NewMQTT(opts MQTTOptions) *MQTT {
	logger := slog.Default().With("module", "mqtt")
	o := mqtt.NewClientOptions()
	o.AddBroker(fmt.Sprintf("tcp://%s:%d", opts.Host, opts.Port))
	o.SetClientID(opts.ClientId)
	o.SetUsername(opts.Username)
	o.SetPassword(opts.Password)
	o.SetAutoReconnect(true)
	o.OnConnect = func(client mqtt.Client) {
		logger.Info("MQTT connected", slog.String("host", opts.Host))
	}
	o.OnConnectionLost = func(client mqtt.Client, err error) {
		logger.Warn("MQTT connection lost", slog.Any("error", err))
	}

	mqtt.CRITICAL = newMqttLogger(logger, slog.LevelError)
	mqtt.ERROR = newMqttLogger(logger, slog.LevelError)
	mqtt.WARN = newMqttLogger(logger, slog.LevelWarn)

	client := mqtt.NewClient(o)
	m := newMQTT(logger, client, opts.TopicPrefix, opts.Qos)
	m.client = client
	return m
}

func newMQTT(logger *slog.Logger, pub publisher, prefix string, qos byte) *MQTT {
	return &MQTT{
		logger:    logger,
		pub:       pub,
		prefix:    strings.TrimSuffix(prefix, "/"),
		qos:       qos,
		declared:  make(map[string]struct{}),
		published: make(map[string]struct{}),
	}
}

func (m *MQTT) Connect() error {
	m.logger.Debug("connecting MQTT client")
	if token := m.client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	return nil
}

func (m *MQTT) Disconnect() {
	m.logger.Info("disconnecting MQTT client")
	m.client.Disconnect(250)
}

func (m *MQTT) Topic(id string) string {
	t := strings.ReplaceAll(id, ".", "/")
	if m.prefix == "" {
		return t
	}
	return m.prefix + "/" + t
}

func (m *MQTT) SetObjectNotExists(ctx context.Context, id string, obj types.StateObject) error {
	m.mu.Lock()
	_, exists := m.declared[id]
	m.mu.Unlock()
	if exists {
		return nil
	}

	payload, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("marshal object %s: %w", id, err)
	}
	if err := m.publish(ctx, m.Topic(id)+"/$meta", payload); err != nil {
		return err
	}

	m.mu.Lock()
	m.declared[id] = struct{}{}
	m.mu.Unlock()
	return nil
}

func (m *MQTT) SetState(ctx context.Context, id string, val any, _ bool) error {
	payload, err := formatValue(val)
	if err != nil {
		return fmt.Errorf("format value of %s: %w", id, err)
	}
	if err := m.publish(ctx, m.Topic(id), payload); err != nil {
		return err
	}

	m.mu.Lock()
	m.published[id] = struct{}{}
	m.mu.Unlock()
	return nil
}

// Trim clears the retained messages of stale ids published by this process.
func (m *MQTT) Trim(ctx context.Context, channel string, keep int) error {
	m.mu.Lock()
	var stale []string
	for id := range m.published {
		if IsStale(channel, id, keep) {
			stale = append(stale, id)
		}
	}
	m.mu.Unlock()

	for _, id := range stale {
		if err := m.publish(ctx, m.Topic(id), []byte{}); err != nil {
			return err
		}
		if err := m.publish(ctx, m.Topic(id)+"/$meta", []byte{}); err != nil {
			return err
		}
		m.mu.Lock()
		delete(m.published, id)
		delete(m.declared, id)
		m.mu.Unlock()
	}

	if len(stale) > 0 {
		m.logger.Debug("cleared stale topics", slog.String("channel", channel), slog.Int("count", len(stale)))
	}
	return nil
}

func (m *MQTT) publish(ctx context.Context, topic string, payload []byte) error {
	token := m.pub.Publish(topic, m.qos, true, payload)
	select {
	case <-token.Done():
	case <-time.After(publishTimeout):
		return fmt.Errorf("timeout when publishing to %s", topic)
	case <-ctx.Done():
		return ctx.Err()
	}
	if token.Error() != nil {
		return fmt.Errorf("error when publishing to %s: %w", topic, token.Error())
	}
	return nil
}

func formatValue(val any) ([]byte, error) {
	switch v := val.(type) {
	case string:
		return []byte(v), nil
	case float64:
		return []byte(strconv.FormatFloat(v, 'f', -1, 64)), nil
	case int64:
		return []byte(strconv.FormatInt(v, 10)), nil
	case int:
		return []byte(strconv.Itoa(v)), nil
	case bool:
		return []byte(strconv.FormatBool(v)), nil
	default:
		return json.Marshal(v)
	}
}
