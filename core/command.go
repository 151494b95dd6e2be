package core

import (
	"errors"
	"sync"
)

// CommandHandler decodes its own arguments from the frame data
type CommandHandler func(data *[]byte) error

// Command is an entry in the data dictionary.
// Responses (MCU -> host) are registered with a nil Handler.
type Command struct {
	ID      uint16
	Name    string
	Format  string // e.g. "pin=%u value=%hu"
	Handler CommandHandler
}

// Signature returns the dictionary key for the command ("name args")
func (c *Command) Signature() string {
	if c.Format == "" {
		return c.Name
	}
	return c.Name + " " + c.Format
}

// CommandRegistry assigns sequential IDs to commands and dispatches frames
type CommandRegistry struct {
	mu       sync.RWMutex
	commands []*Command
	byName   map[string]uint16
}

var globalRegistry = NewCommandRegistry()

// NewCommandRegistry creates an empty registry
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{
		byName: make(map[string]uint16),
	}
}

// RegisterCommand registers a command handler in the global registry
func RegisterCommand(name string, format string, handler CommandHandler) uint16 {
	return globalRegistry.Register(name, format, handler)
}

// RegisterResponse registers a response message (MCU -> host)
func RegisterResponse(name string, format string) uint16 {
	return globalRegistry.Register(name, format, nil)
}

// Register adds a command and returns its ID.
// Registering a name twice returns the existing ID.
func (r *CommandRegistry) Register(name string, format string, handler CommandHandler) uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, exists := r.byName[name]; exists {
		return id
	}

	id := uint16(len(r.commands))
	r.commands = append(r.commands, &Command{
		ID:      id,
		Name:    name,
		Format:  format,
		Handler: handler,
	})
	r.byName[name] = id
	return id
}

// GetCommand retrieves a command by ID
func (r *CommandRegistry) GetCommand(id uint16) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(id) >= len(r.commands) {
		return nil, false
	}
	return r.commands[id], true
}

// GetCommandByName retrieves a command by name
func (r *CommandRegistry) GetCommandByName(name string) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byName[name]
	if !ok {
		return nil, false
	}
	return r.commands[id], true
}

// Count returns the number of registered commands and responses
func (r *CommandRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.commands)
}

// Dispatch calls the handler registered for cmdID
func (r *CommandRegistry) Dispatch(cmdID uint16, data *[]byte) error {
	cmd, ok := r.GetCommand(cmdID)
	if !ok {
		return errors.New("unknown command ID: " + itoa(int(cmdID)))
	}
	if cmd.Handler == nil {
		return errors.New("not a command: " + cmd.Name)
	}
	return cmd.Handler(data)
}

// GetDictionary returns one "name args" line per entry, in ID order
func (r *CommandRegistry) GetDictionary() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	dict := ""
	for _, cmd := range r.commands {
		dict += cmd.Signature() + "\n"
	}
	return dict
}

// GetCommandsAndResponses splits the registry for the JSON dictionary
func (r *CommandRegistry) GetCommandsAndResponses() (map[string]int, map[string]int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	commands := make(map[string]int)
	responses := make(map[string]int)
	for _, cmd := range r.commands {
		if cmd.Handler != nil {
			commands[cmd.Signature()] = int(cmd.ID)
		} else {
			responses[cmd.Signature()] = int(cmd.ID)
		}
	}
	return commands, responses
}

// DispatchCommand dispatches through the global registry
func DispatchCommand(cmdID uint16, data *[]byte) error {
	return globalRegistry.Dispatch(cmdID, data)
}

// GetGlobalRegistry returns the global command registry
func GetGlobalRegistry() *CommandRegistry {
	return globalRegistry
}
