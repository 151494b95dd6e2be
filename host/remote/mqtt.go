// Package remote feeds soft-PWM duty changes received over MQTT to the
// Linux runner.
//
// A broker publish on <topic>/<pin>/duty with a decimal payload becomes one
// DutyUpdate. Updates are delivered on a channel so the scheduler stays
// owned by a single goroutine.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	mqtt "github.com/soypat/natiu-mqtt"

	"softpwm/core"
	"softpwm/host/config"
)

const (
	dialTimeout    = 5 * time.Second
	connectTimeout = 5 * time.Second
	retryDelay     = 2 * time.Second

	subscribePacketID = 0x50
)

var ErrBadTopic = errors.New("remote: topic is not <prefix>/<pin>/duty")

// DutyUpdate is a single set request for one pin
type DutyUpdate struct {
	Pin  core.GPIOPin
	Duty uint8
}

// ParseDutyMessage decodes a publish on <prefix>/<pin>/duty.
// Values above SoftPWMMax clamp to full on, as set_soft_pwm does.
func ParseDutyMessage(prefix, topic string, payload []byte) (DutyUpdate, error) {
	rest, ok := strings.CutPrefix(topic, prefix+"/")
	if !ok {
		return DutyUpdate{}, ErrBadTopic
	}
	pinStr, ok := strings.CutSuffix(rest, "/duty")
	if !ok || pinStr == "" || strings.Contains(pinStr, "/") {
		return DutyUpdate{}, ErrBadTopic
	}
	pin, err := strconv.ParseUint(pinStr, 10, 32)
	if err != nil {
		return DutyUpdate{}, fmt.Errorf("%w: pin %q", ErrBadTopic, pinStr)
	}

	duty, err := strconv.ParseUint(strings.TrimSpace(string(payload)), 10, 32)
	if err != nil {
		return DutyUpdate{}, fmt.Errorf("remote: duty %q: %w", payload, err)
	}
	if duty > core.SoftPWMMax {
		duty = core.SoftPWMMax
	}
	return DutyUpdate{Pin: core.GPIOPin(pin), Duty: uint8(duty)}, nil
}

// Subscriber keeps an MQTT session open and forwards duty updates
type Subscriber struct {
	cfg     config.MQTT
	logger  *slog.Logger
	updates chan DutyUpdate
	dial    func(ctx context.Context, addr string) (net.Conn, error)
}

func NewSubscriber(cfg config.MQTT, logger *slog.Logger) *Subscriber {
	dialer := net.Dialer{Timeout: dialTimeout}
	return &Subscriber{
		cfg:     cfg,
		logger:  logger,
		updates: make(chan DutyUpdate, core.MaxSoftPWMChannels),
		dial: func(ctx context.Context, addr string) (net.Conn, error) {
			return dialer.DialContext(ctx, "tcp", addr)
		},
	}
}

// Updates returns the channel of parsed duty requests
func (s *Subscriber) Updates() <-chan DutyUpdate {
	return s.updates
}

// Filter is the subscription topic filter
func (s *Subscriber) Filter() string {
	return s.cfg.Topic + "/+/duty"
}

// Run holds a session until ctx is done, reconnecting after broker errors
func (s *Subscriber) Run(ctx context.Context) error {
	for {
		err := s.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		s.logger.Warn("mqtt session ended", "broker", s.cfg.Broker, "err", err)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(retryDelay):
		}
	}
}

func (s *Subscriber) session(ctx context.Context) error {
	conn, err := s.dial(ctx, s.cfg.Broker)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.cfg.Broker, err)
	}
	defer conn.Close()

	// HandleNext blocks in Read; closing the socket is the only way out
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	return s.serve(ctx, conn)
}

func (s *Subscriber) serve(ctx context.Context, conn net.Conn) error {
	client := mqtt.NewClient(mqtt.ClientConfig{
		Decoder: mqtt.DecoderNoAlloc{UserBuffer: make([]byte, 1024)},
		OnPub: func(_ mqtt.Header, varPub mqtt.VariablesPublish, r io.Reader) error {
			payload, err := io.ReadAll(r)
			if err != nil {
				return err
			}
			s.deliver(ctx, string(varPub.TopicName), payload)
			return nil
		},
	})

	var varConn mqtt.VariablesConnect
	varConn.SetDefaultMQTT([]byte(s.cfg.ClientID))
	if s.cfg.Username != "" {
		varConn.Username = []byte(s.cfg.Username)
		if s.cfg.Password != "" {
			varConn.Password = []byte(s.cfg.Password)
		}
	}
	// No keepalive: the runner only listens and never publishes
	varConn.KeepAlive = 0

	conn.SetDeadline(time.Now().Add(connectTimeout))
	if err := client.StartConnect(conn, &varConn); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	for !client.IsConnected() {
		if err := client.HandleNext(); err != nil {
			return fmt.Errorf("mqtt connack: %w", err)
		}
	}

	subCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	err := client.Subscribe(subCtx, mqtt.VariablesSubscribe{
		PacketIdentifier: subscribePacketID,
		TopicFilters: []mqtt.SubscribeRequest{
			{TopicFilter: []byte(s.Filter()), QoS: mqtt.QoS0},
		},
	})
	cancel()
	if err != nil {
		return fmt.Errorf("mqtt subscribe %s: %w", s.Filter(), err)
	}
	conn.SetDeadline(time.Time{})
	s.logger.Info("mqtt subscribed", "broker", s.cfg.Broker, "filter", s.Filter())

	for client.IsConnected() {
		if err := client.HandleNext(); err != nil {
			return err
		}
	}
	return client.Err()
}

// deliver parses one publish and queues it, dropping malformed messages
func (s *Subscriber) deliver(ctx context.Context, topic string, payload []byte) {
	upd, err := ParseDutyMessage(s.cfg.Topic, topic, payload)
	if err != nil {
		s.logger.Debug("mqtt message ignored", "topic", topic, "err", err)
		return
	}
	select {
	case s.updates <- upd:
	case <-ctx.Done():
	}
}
