// Command softpwm-host drives soft-PWM channels on a connected MCU from an
// interactive prompt.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"softpwm/host/mcu"
	"softpwm/host/serial"
)

var (
	device  = flag.String("device", "/dev/ttyACM0", "Serial device path")
	baud    = flag.Int("baud", serial.DefaultBaud, "Baud rate (ignored for USB CDC)")
	verbose = flag.Bool("verbose", false, "Enable debug logging")
)

var errUsage = errors.New("usage")

// controller is the part of *mcu.MCU the prompt uses
type controller interface {
	ConfigSoftPWM(frequency uint32) error
	SetSoftPWM(pin uint32, duty uint32) error
	QuerySoftPWM(pin uint32) (mcu.ChannelState, error)
	SoftPWMStatus() (mcu.Status, error)
	GetClock() (uint32, error)
	GetUptime() (uint64, error)
	EmergencyStop() error
	PrintDictionary(w io.Writer)
}

func main() {
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	conn := mcu.New(logger)
	cfg := serial.DefaultConfig(*device)
	cfg.Baud = *baud
	if err := conn.ConnectWithConfig(cfg); err != nil {
		logger.Error("connect failed", "device", *device, "err", err)
		os.Exit(1)
	}
	defer conn.Close()

	if err := conn.RetrieveDictionary(); err != nil {
		logger.Error("dictionary retrieval failed", "err", err)
		os.Exit(1)
	}

	fmt.Println("Enter commands (type 'help' for available commands, 'quit' to exit):")
	if err := repl(conn, os.Stdin, os.Stdout); err != nil {
		logger.Error("reading input", "err", err)
		os.Exit(1)
	}
}

// repl reads commands from in until quit or EOF
func repl(c controller, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		quit, err := execute(c, out, scanner.Text())
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
		}
		if quit {
			return nil
		}
	}
}

// execute runs one command line
func execute(c controller, out io.Writer, line string) (quit bool, err error) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return false, nil
	}

	args, err := parseArgs(parts[1:])
	if err != nil {
		return false, err
	}

	switch parts[0] {
	case "quit", "exit", "q":
		fmt.Fprintln(out, "Goodbye!")
		return true, nil

	case "help", "?":
		printHelp(out)

	case "dict":
		c.PrintDictionary(out)

	case "freq":
		if len(args) != 1 {
			return false, fmt.Errorf("%w: freq <hz>", errUsage)
		}
		if err := c.ConfigSoftPWM(args[0]); err != nil {
			return false, err
		}
		return false, printStatus(c, out)

	case "set":
		if len(args) != 2 {
			return false, fmt.Errorf("%w: set <pin> <duty 0-255>", errUsage)
		}
		if args[1] > 255 {
			return false, fmt.Errorf("duty %d out of range 0-255", args[1])
		}
		return false, c.SetSoftPWM(args[0], args[1])

	case "get":
		if len(args) != 1 {
			return false, fmt.Errorf("%w: get <pin>", errUsage)
		}
		st, err := c.QuerySoftPWM(args[0])
		if err != nil {
			return false, err
		}
		if !st.Active {
			fmt.Fprintf(out, "pin %d: not assigned\n", st.Pin)
			return false, nil
		}
		fmt.Fprintf(out, "pin %d: duty %d/255 (%.1f%%) level %s\n",
			st.Pin, st.Duty, float64(st.Duty)*100/255, levelName(st.IsOn))

	case "status":
		return false, printStatus(c, out)

	case "stop":
		return false, c.EmergencyStop()

	case "get_clock":
		clock, err := c.GetClock()
		if err != nil {
			return false, err
		}
		fmt.Fprintf(out, "clock: %d\n", clock)

	case "get_uptime":
		uptime, err := c.GetUptime()
		if err != nil {
			return false, err
		}
		fmt.Fprintf(out, "uptime: %d us\n", uptime)

	default:
		fmt.Fprintf(out, "Unknown command: %s (type 'help' for available commands)\n", parts[0])
	}
	return false, nil
}

func printStatus(c controller, out io.Writer) error {
	st, err := c.SoftPWMStatus()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "frequency %d Hz, period %d us, %d/%d channels, %d I/O errors\n",
		st.Frequency, st.Period, st.Count, st.Capacity, st.IOErrors)
	return nil
}

func parseArgs(fields []string) ([]uint32, error) {
	args := make([]uint32, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseUint(f, 0, 32)
		if err != nil {
			return nil, fmt.Errorf("bad argument %q: %w", f, err)
		}
		args[i] = uint32(v)
	}
	return args, nil
}

func levelName(on bool) string {
	if on {
		return "high"
	}
	return "low"
}

func printHelp(out io.Writer) {
	fmt.Fprintln(out, "\nAvailable commands:")
	fmt.Fprintln(out, "  freq <hz>         - Set the shared frequency (clears all channels)")
	fmt.Fprintln(out, "  set <pin> <duty>  - Set a pin's duty, 0-255")
	fmt.Fprintln(out, "  get <pin>         - Show a pin's channel")
	fmt.Fprintln(out, "  status            - Show scheduler status")
	fmt.Fprintln(out, "  stop              - Emergency stop: drive every output low")
	fmt.Fprintln(out, "  dict              - Print dictionary summary")
	fmt.Fprintln(out, "  get_clock         - Get MCU clock")
	fmt.Fprintln(out, "  get_uptime        - Get MCU uptime")
	fmt.Fprintln(out, "  quit/exit/q       - Exit the program")
	fmt.Fprintln(out)
}
