package remote

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"softpwm/host/config"
)

func TestParseDutyMessage(t *testing.T) {
	testCases := []struct {
		topic   string
		payload string
		want    DutyUpdate
	}{
		{"softpwm/17/duty", "64", DutyUpdate{Pin: 17, Duty: 64}},
		{"softpwm/4/duty", " 0\n", DutyUpdate{Pin: 4, Duty: 0}},
		{"softpwm/4/duty", "1000", DutyUpdate{Pin: 4, Duty: 255}},
	}
	for _, tc := range testCases {
		got, err := ParseDutyMessage("softpwm", tc.topic, []byte(tc.payload))
		if err != nil {
			t.Errorf("%s %q: %v", tc.topic, tc.payload, err)
			continue
		}
		if got != tc.want {
			t.Errorf("%s %q = %+v, want %+v", tc.topic, tc.payload, got, tc.want)
		}
	}
}

func TestParseDutyMessageRejects(t *testing.T) {
	testCases := []struct {
		name    string
		topic   string
		payload string
		topicEr bool
	}{
		{"other prefix", "lights/17/duty", "1", true},
		{"missing pin", "softpwm//duty", "1", true},
		{"nested", "softpwm/a/17/duty", "1", true},
		{"not duty", "softpwm/17/state", "1", true},
		{"pin not numeric", "softpwm/gpio17/duty", "1", true},
		{"negative duty", "softpwm/17/duty", "-1", false},
		{"empty duty", "softpwm/17/duty", "", false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseDutyMessage("softpwm", tc.topic, []byte(tc.payload))
			if err == nil {
				t.Fatal("expected error")
			}
			if got := errors.Is(err, ErrBadTopic); got != tc.topicEr {
				t.Errorf("errors.Is(%v, ErrBadTopic) = %v", err, got)
			}
		})
	}
}

func newTestSubscriber(topic string) *Subscriber {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewSubscriber(config.MQTT{Broker: "broker:1883", Topic: topic}, logger)
}

func TestDeliverQueuesValidMessages(t *testing.T) {
	s := newTestSubscriber("lab")
	ctx := context.Background()

	s.deliver(ctx, "lab/9/duty", []byte("12"))
	s.deliver(ctx, "lab/9/state", []byte("12"))

	select {
	case upd := <-s.Updates():
		if upd != (DutyUpdate{Pin: 9, Duty: 12}) {
			t.Errorf("update = %+v", upd)
		}
	default:
		t.Fatal("valid message was not queued")
	}
	select {
	case upd := <-s.Updates():
		t.Errorf("malformed message queued: %+v", upd)
	default:
	}

	if s.Filter() != "lab/+/duty" {
		t.Errorf("filter = %q", s.Filter())
	}
}

func TestRunStopsWhenCancelled(t *testing.T) {
	s := newTestSubscriber("softpwm")
	dials := make(chan struct{}, 16)
	s.dial = func(ctx context.Context, addr string) (net.Conn, error) {
		dials <- struct{}{}
		return nil, errors.New("connection refused")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() = %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if len(dials) != 1 {
		t.Errorf("dials = %d, want 1 before the retry delay", len(dials))
	}
}

func TestSessionClosesOnCancel(t *testing.T) {
	s := newTestSubscriber("softpwm")
	client, broker := net.Pipe()
	defer broker.Close()
	s.dial = func(ctx context.Context, addr string) (net.Conn, error) {
		return client, nil
	}

	// Swallow the CONNECT packet and never answer it
	go io.Copy(io.Discard, broker)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.session(ctx) }()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Error("session without CONNACK returned nil")
		}
	case <-time.After(time.Second):
		t.Fatal("session did not return after cancel")
	}
}
