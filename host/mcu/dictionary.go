package mcu

import (
	"bytes"
	"compress/zlib"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"softpwm/protocol"
)

// Dictionary is the MCU's data dictionary
type Dictionary struct {
	Version       string                    `json:"version"`
	BuildVersions string                    `json:"build_versions"`
	Config        map[string]string         `json:"config"`
	Commands      map[string]int            `json:"commands"`
	Responses     map[string]int            `json:"responses"`
	Enumerations  map[string]map[string]int `json:"enumerations,omitempty"`
}

// ParseDictionary decodes a dictionary as sent by identify. zlib data is
// inflated first; plain JSON is accepted as is.
func ParseDictionary(data []byte) (*Dictionary, error) {
	raw, err := decompress(data)
	if err != nil {
		return nil, err
	}

	dict := &Dictionary{}
	if err := json.Unmarshal(raw, dict); err != nil {
		return nil, fmt.Errorf("unmarshal dictionary: %w", err)
	}
	return dict, nil
}

// decompress inflates zlib streams (first byte 0x78, CMF for deflate/32K)
func decompress(data []byte) ([]byte, error) {
	if len(data) < 2 || data[0] != 0x78 {
		return data, nil
	}
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open zlib stream: %w", err)
	}
	defer r.Close()

	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("inflate dictionary: %w", err)
	}
	return raw, nil
}

// Message is a command or response found by name in the dictionary
type Message struct {
	ID     int
	Name   string
	Params []Param
}

// Param is one field of a message format
type Param struct {
	Name string
	Kind byte // 'u', 'i', 'c' or 's'
}

// lookup finds name among format strings like "set_soft_pwm pin=%u value=%hu"
func lookup(table map[string]int, name string) (*Message, bool) {
	for format, id := range table {
		if format == name || strings.HasPrefix(format, name+" ") {
			return parseFormat(id, format), true
		}
	}
	return nil, false
}

// Command looks up a command by name
func (d *Dictionary) Command(name string) (*Message, bool) {
	return lookup(d.Commands, name)
}

// Response looks up a response by name
func (d *Dictionary) Response(name string) (*Message, bool) {
	return lookup(d.Responses, name)
}

// Constant returns a config constant as an integer
func (d *Dictionary) Constant(name string) (int64, bool) {
	s, ok := d.Config[name]
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func parseFormat(id int, format string) *Message {
	fields := strings.Fields(format)
	msg := &Message{ID: id, Name: fields[0]}
	for _, f := range fields[1:] {
		name, spec, ok := strings.Cut(f, "=")
		if !ok || spec == "" {
			continue
		}
		msg.Params = append(msg.Params, Param{Name: name, Kind: kindOf(spec)})
	}
	return msg
}

// kindOf maps printf-style specifiers (%u, %hu, %i, %c, %s, %*s, %.*s)
// to their wire encoding
func kindOf(spec string) byte {
	switch spec[len(spec)-1] {
	case 'i':
		return 'i'
	case 'c':
		return 'c'
	case 's':
		return 's'
	default:
		return 'u'
	}
}

// Decode reads the message's parameters from payload (after the ID).
// Integers land in the first map, byte strings in the second.
func (m *Message) Decode(payload []byte) (map[string]int64, map[string][]byte, error) {
	ints := make(map[string]int64, len(m.Params))
	var strs map[string][]byte

	for _, p := range m.Params {
		switch p.Kind {
		case 's':
			b, err := protocol.DecodeVLQBytes(&payload)
			if err != nil {
				return nil, nil, fmt.Errorf("%s.%s: %w", m.Name, p.Name, err)
			}
			if strs == nil {
				strs = make(map[string][]byte)
			}
			strs[p.Name] = append([]byte(nil), b...)
		case 'i':
			v, err := protocol.DecodeVLQInt(&payload)
			if err != nil {
				return nil, nil, fmt.Errorf("%s.%s: %w", m.Name, p.Name, err)
			}
			ints[p.Name] = int64(v)
		default:
			v, err := protocol.DecodeVLQUint(&payload)
			if err != nil {
				return nil, nil, fmt.Errorf("%s.%s: %w", m.Name, p.Name, err)
			}
			ints[p.Name] = int64(v)
		}
	}
	return ints, strs, nil
}

// Print writes a readable summary of the dictionary to w
func (d *Dictionary) Print(w io.Writer) {
	fmt.Fprintln(w, "=== MCU Dictionary ===")
	fmt.Fprintf(w, "Version: %s\n", d.Version)
	fmt.Fprintf(w, "Build: %s\n", d.BuildVersions)

	fmt.Fprintln(w, "\nConfig:")
	for _, k := range sortedKeys(d.Config) {
		fmt.Fprintf(w, "  %s = %s\n", k, d.Config[k])
	}

	printTable(w, "Commands", d.Commands)
	printTable(w, "Responses", d.Responses)

	if len(d.Enumerations) > 0 {
		fmt.Fprintf(w, "\nEnumerations (%d):\n", len(d.Enumerations))
		for _, name := range sortedKeys(d.Enumerations) {
			fmt.Fprintf(w, "  %s: %d values\n", name, len(d.Enumerations[name]))
		}
	}
}

func printTable(w io.Writer, title string, table map[string]int) {
	formats := sortedKeys(table)
	sort.Slice(formats, func(i, j int) bool { return table[formats[i]] < table[formats[j]] })

	fmt.Fprintf(w, "\n%s (%d):\n", title, len(table))
	for _, f := range formats {
		fmt.Fprintf(w, "  [%d] %s\n", table[f], f)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
