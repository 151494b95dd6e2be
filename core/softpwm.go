// Software PWM support
// Emulates PWM on plain digital outputs for pins without a free hardware slice
package core

const (
	// MaxSoftPWMChannels is the fixed size of the channel table
	MaxSoftPWMChannels = 8

	// DefaultSoftPWMFrequency replaces invalid (non-positive) frequencies
	DefaultSoftPWMFrequency = 100

	// SoftPWMMax is the full-on duty value
	SoftPWMMax = 255

	microsPerSecond = 1000000
)

// Clock returns a free-running microsecond timestamp.
// It must wrap modulo 2^32 rather than saturate.
type Clock func() uint32

// SoftPWMChannel is one slot of the soft-PWM channel table
type SoftPWMChannel struct {
	Pin    GPIOPin // Output pin
	Duty   uint8   // 0 = always off, 255 = always on
	Active bool    // Slot holds a live assignment
	IsOn   bool    // Last commanded level was high
}

// SoftPWM drives up to MaxSoftPWMChannels pins from a single shared period.
//
// All channels rise together at the start of each cycle and each one falls at
// its own offset (period * duty / 255). Update must be called from the control
// loop often compared to period/255; the scheduler never blocks.
//
// SoftPWM has no internal locking. SetDuty and Update must be called from the
// same execution context.
type SoftPWM struct {
	gpio GPIODriver
	now  Clock

	channels     [MaxSoftPWMChannels]SoftPWMChannel
	frequency    int
	periodMicros uint32
	cycleStart   uint32

	ioErrors uint32
}

// NewSoftPWM creates a scheduler running at DefaultSoftPWMFrequency
func NewSoftPWM(gpio GPIODriver, now Clock) *SoftPWM {
	s := &SoftPWM{
		gpio: gpio,
		now:  now,
	}
	s.Initialize(DefaultSoftPWMFrequency)
	return s
}

// Initialize sets the shared PWM frequency and clears the channel table.
//
// Pins that were assigned keep whatever level they were last driven to.
// The cycle start timestamp is not reset.
func (s *SoftPWM) Initialize(frequency int) {
	if frequency <= 0 {
		frequency = DefaultSoftPWMFrequency
	}
	s.frequency = frequency
	s.periodMicros = uint32(microsPerSecond / frequency)

	for i := range s.channels {
		s.channels[i] = SoftPWMChannel{}
	}
}

// SetDuty assigns a duty value to a pin.
//
// An already assigned pin is updated in place; a duty of 0 takes effect
// immediately. A new pin takes the first free slot and is configured as an
// output. When the table is full the request is dropped.
func (s *SoftPWM) SetDuty(pin GPIOPin, duty uint8) {
	var free *SoftPWMChannel

	for i := range s.channels {
		ch := &s.channels[i]
		if !ch.Active {
			if free == nil {
				free = ch
			}
			continue
		}
		if ch.Pin != pin {
			continue
		}

		ch.Duty = duty
		if duty == 0 && ch.IsOn {
			s.drive(ch, false)
		}
		return
	}

	if free == nil {
		// Table full
		return
	}

	s.configure(pin)
	*free = SoftPWMChannel{
		Pin:    pin,
		Duty:   duty,
		Active: true,
	}
	if duty == 0 {
		s.drive(free, false)
	}
}

// Update advances the PWM waveform. Call it on every loop iteration.
func (s *SoftPWM) Update() {
	now := s.now()
	elapsed := now - s.cycleStart // wraps with the counter

	// Rising edge: start of a new cycle
	if elapsed >= s.periodMicros {
		s.cycleStart = now
		elapsed = 0

		for i := range s.channels {
			ch := &s.channels[i]
			if !ch.Active {
				continue
			}
			if ch.Duty > 0 {
				s.drive(ch, true)
			} else if ch.IsOn {
				s.drive(ch, false)
			}
		}
	}

	// Falling edges: each channel at its own offset into the cycle
	for i := range s.channels {
		ch := &s.channels[i]
		if !ch.Active || !ch.IsOn {
			continue
		}
		if elapsed >= TurnOffMicros(s.periodMicros, ch.Duty) {
			s.drive(ch, false)
		}
	}
}

// Shutdown zeroes every assigned channel and drives its pin low.
// Slots stay assigned; a later SetDuty restarts the channel.
func (s *SoftPWM) Shutdown() {
	for i := range s.channels {
		ch := &s.channels[i]
		if !ch.Active {
			continue
		}
		ch.Duty = 0
		s.drive(ch, false)
	}
}

// TurnOffMicros returns the offset into the cycle at which a channel falls.
// Duty 255 yields the full period, so the channel never falls within a cycle.
func TurnOffMicros(period uint32, duty uint8) uint32 {
	return uint32(uint64(period) * uint64(duty) / SoftPWMMax)
}

// Period returns the shared PWM period in microseconds
func (s *SoftPWM) Period() uint32 {
	return s.periodMicros
}

// Frequency returns the effective PWM frequency in hertz
func (s *SoftPWM) Frequency() int {
	return s.frequency
}

// Capacity returns the size of the channel table
func (s *SoftPWM) Capacity() int {
	return len(s.channels)
}

// ActiveCount returns the number of assigned channels
func (s *SoftPWM) ActiveCount() int {
	n := 0
	for i := range s.channels {
		if s.channels[i].Active {
			n++
		}
	}
	return n
}

// Channel returns the channel assigned to pin, if any
func (s *SoftPWM) Channel(pin GPIOPin) (SoftPWMChannel, bool) {
	for i := range s.channels {
		if s.channels[i].Active && s.channels[i].Pin == pin {
			return s.channels[i], true
		}
	}
	return SoftPWMChannel{}, false
}

// Channels returns a copy of the assigned channels in slot order
func (s *SoftPWM) Channels() []SoftPWMChannel {
	out := make([]SoftPWMChannel, 0, len(s.channels))
	for i := range s.channels {
		if s.channels[i].Active {
			out = append(out, s.channels[i])
		}
	}
	return out
}

// IOErrors returns how many GPIO driver calls have failed
func (s *SoftPWM) IOErrors() uint32 {
	return s.ioErrors
}

// drive sets the pin level and records it in the channel.
// The cached level follows the command even if the driver reports an error.
func (s *SoftPWM) drive(ch *SoftPWMChannel, on bool) {
	if err := s.gpio.SetPin(ch.Pin, on); err != nil {
		s.ioErrors++
	}
	ch.IsOn = on
}

func (s *SoftPWM) configure(pin GPIOPin) {
	if err := s.gpio.ConfigureOutput(pin); err != nil {
		s.ioErrors++
	}
}
