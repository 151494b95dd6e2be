package core

import (
	"bytes"
	"encoding/json"
	"sync"

	"softpwm/tinycompress"
)

// Dictionary is the zlib-compressed JSON data dictionary served by identify
type Dictionary struct {
	mu            sync.RWMutex
	constants     map[string]interface{}
	enumerations  map[string][]string
	commandReg    *CommandRegistry
	version       string
	buildVersions string
	cached        []byte
	cachedCount   int // registry size when cached was built
}

// dictionaryJSON is the wire layout of the dictionary
type dictionaryJSON struct {
	Version       string                    `json:"version"`
	BuildVersions string                    `json:"build_versions"`
	Config        map[string]string         `json:"config"`
	Commands      map[string]int            `json:"commands"`
	Responses     map[string]int            `json:"responses"`
	Enumerations  map[string]map[string]int `json:"enumerations,omitempty"`
}

var globalDictionary = NewDictionary(globalRegistry)

// NewDictionary creates a dictionary over a command registry
func NewDictionary(cmdReg *CommandRegistry) *Dictionary {
	return &Dictionary{
		constants:     make(map[string]interface{}),
		enumerations:  make(map[string][]string),
		commandReg:    cmdReg,
		version:       "softpwm-0.1.0",
		buildVersions: "go-tinygo",
	}
}

// RegisterConstant registers a constant in the global dictionary
func RegisterConstant(name string, value interface{}) {
	globalDictionary.AddConstant(name, value)
}

// RegisterEnumeration registers an enumeration in the global dictionary
func RegisterEnumeration(name string, values []string) {
	globalDictionary.AddEnumeration(name, values)
}

// AddConstant adds a constant and invalidates the cache
func (d *Dictionary) AddConstant(name string, value interface{}) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.constants[name] = value
	d.cached = nil
}

// AddEnumeration adds an enumeration; empty names leave a gap in the indices
func (d *Dictionary) AddEnumeration(name string, values []string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	// Keep our own copy; callers often build the slice on the stack
	valuesCopy := make([]string, len(values))
	copy(valuesCopy, values)
	d.enumerations[name] = valuesCopy
	d.cached = nil
}

// SetVersion sets the firmware version string
func (d *Dictionary) SetVersion(version string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.version = version
	d.cached = nil
}

// SetBuildVersions sets the build versions string
func (d *Dictionary) SetBuildVersions(versions string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.buildVersions = versions
	d.cached = nil
}

// BuildDictionary compresses and caches the dictionary.
// Call it once after every command has been registered.
func (d *Dictionary) BuildDictionary() error {
	// Read the registry before taking our own lock
	commands, responses := d.commandReg.GetCommandsAndResponses()

	d.mu.Lock()
	defer d.mu.Unlock()

	data, err := d.encodeLocked(commands, responses)
	if err != nil {
		DebugPrintln("[BuildDict] ERROR: " + err.Error())
		return err
	}
	d.cached = data
	d.cachedCount = len(commands) + len(responses)
	DebugPrintln("[BuildDict] cached " + itoa(len(data)) + " bytes")
	return nil
}

// Generate returns the compressed dictionary, building it if needed
func (d *Dictionary) Generate() []byte {
	d.mu.RLock()
	cached := d.cached
	stale := d.cachedCount != d.commandReg.Count()
	d.mu.RUnlock()
	if cached != nil && !stale {
		return cached
	}

	if err := d.BuildDictionary(); err != nil {
		return nil
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cached
}

func (d *Dictionary) encodeLocked(commands, responses map[string]int) ([]byte, error) {
	doc := dictionaryJSON{
		Version:       d.version,
		BuildVersions: d.buildVersions,
		Config:        make(map[string]string, len(d.constants)),
		Commands:      commands,
		Responses:     responses,
	}
	for name, value := range d.constants {
		doc.Config[name] = valueToString(value)
	}
	if len(d.enumerations) > 0 {
		doc.Enumerations = make(map[string]map[string]int, len(d.enumerations))
		for name, values := range d.enumerations {
			enum := make(map[string]int, len(values))
			for i, v := range values {
				if v != "" {
					enum[v] = i
				}
			}
			doc.Enumerations[name] = enum
		}
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := tinycompress.NewWriter(&buf, len(raw))
	if _, err := w.Write(raw); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GetChunk returns a copy of count bytes of the dictionary starting at offset
func (d *Dictionary) GetChunk(offset uint32, count uint8) []byte {
	data := d.Generate()
	if offset >= uint32(len(data)) {
		return []byte{}
	}

	end := offset + uint32(count)
	if end > uint32(len(data)) {
		end = uint32(len(data))
	}

	chunk := make([]byte, end-offset)
	copy(chunk, data[offset:end])
	return chunk
}

// GetGlobalDictionary returns the global dictionary instance
func GetGlobalDictionary() *Dictionary {
	return globalDictionary
}
