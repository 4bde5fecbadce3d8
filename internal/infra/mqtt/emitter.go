package mqtt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/fiapx/fiapx-detection-service/internal/domain/entity"
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
)

const (
	connectTimeout = 5 * time.Second
	publishTimeout = 2 * time.Second
)

var ErrNotConnected = errors.New("mqtt not connected")

// TimelineEvent is the msgpack payload published for a completed task.
type TimelineEvent struct {
	RecordingID string                   `json:"recording_id"`
	AssetID     string                   `json:"asset_id,omitempty"`
	Series      []entity.DetectionRecord `json:"series"`
	EmittedAt   int64                    `json:"emitted_at"`
}

type EmitterConfig struct {
	Broker string
	Topic  string
	QoS    byte
}

// Emitter publishes detection timelines to {Topic}/{recording_id}.
type Emitter struct {
	client pahomqtt.Client
	topic  string
	qos    byte
	logger *zap.Logger
}

// Connect dials the broker with auto-reconnect enabled.
func Connect(cfg EmitterConfig, logger *zap.Logger) (*Emitter, error) {
	broker := cfg.Broker
	if !strings.Contains(broker, "://") {
		broker = "tcp://" + broker
	}

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID("fiapx-detection-" + uuid.NewString())
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.OnConnectionLost = func(_ pahomqtt.Client, err error) {
		logger.Warn("mqtt connection lost, will auto-reconnect", zap.String("broker", broker), zap.Error(err))
	}

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connection failed: %w", err)
	}

	logger.Info("mqtt connection established", zap.String("broker", broker))
	return NewEmitter(client, cfg.Topic, cfg.QoS, logger), nil
}

func NewEmitter(client pahomqtt.Client, topic string, qos byte, logger *zap.Logger) *Emitter {
	return &Emitter{client: client, topic: strings.TrimSuffix(topic, "/"), qos: qos, logger: logger}
}

func (e *Emitter) EmitTimeline(_ context.Context, recordingID string, output entity.TaskOutput) error {
	if !e.client.IsConnectionOpen() {
		return ErrNotConnected
	}

	payload, err := EncodeTimeline(TimelineEvent{
		RecordingID: recordingID,
		AssetID:     output.AssetID,
		Series:      output.Series,
		EmittedAt:   time.Now().UnixMilli(),
	})
	if err != nil {
		return err
	}

	topic := e.topic + "/" + recordingID
	token := e.client.Publish(topic, e.qos, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}

	e.logger.Debug("timeline published", zap.String("topic", topic), zap.Int("size", len(payload)))
	return nil
}

func (e *Emitter) Disconnect() {
	if e.client.IsConnected() {
		e.client.Disconnect(250)
	}
}

// EncodeTimeline encodes ev with msgpack, keyed by the json field names.
func EncodeTimeline(ev TimelineEvent) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(ev); err != nil {
		return nil, fmt.Errorf("encode timeline: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeTimeline is the inverse of EncodeTimeline.
func DecodeTimeline(data []byte) (TimelineEvent, error) {
	var ev TimelineEvent
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	if err := dec.Decode(&ev); err != nil {
		return TimelineEvent{}, fmt.Errorf("decode timeline: %w", err)
	}
	return ev, nil
}

// NopEmitter is used when no broker is configured.
type NopEmitter struct{}

func (NopEmitter) EmitTimeline(context.Context, string, entity.TaskOutput) error { return nil }
