package core

import (
	"errors"
	"strings"
	"sync"
)

// CommandHandler decodes its own arguments from the frame data and acts on
// them. Handlers run on the transport dispatch path, in thread context.
type CommandHandler func(data *[]byte) error

// Command is one console-reachable operation, or, with a nil handler, a
// response message the device emits.
type Command struct {
	ID      uint16
	Name    string
	Format  string // argument description served in the dictionary
	Handler CommandHandler
}

// Constant is a named build parameter exposed through the dictionary, so a
// host can learn values like the tick frequency without a dedicated command.
type Constant struct {
	Name  string
	Value string
}

// Registry maps command IDs to handlers and serves the dictionary the host
// retrieves at connect. Registration happens at boot; dispatch happens on
// the transport path.
type Registry struct {
	mu         sync.RWMutex
	commands   map[uint16]*Command
	nameToID   map[string]uint16
	constants  []Constant
	nextID     uint16
	dictionary string // cached; rebuilt on registration
}

var globalRegistry = NewRegistry()

// NewRegistry returns an empty command registry.
func NewRegistry() *Registry {
	return &Registry{
		commands: make(map[uint16]*Command),
		nameToID: make(map[string]uint16),
	}
}

// RegisterCommand adds a handler to the global registry and returns its ID.
func RegisterCommand(name, format string, handler CommandHandler) uint16 {
	return globalRegistry.Register(name, format, handler)
}

// RegisterResponse adds a device-emitted message to the global registry.
func RegisterResponse(name, format string) uint16 {
	return globalRegistry.Register(name, format, nil)
}

// RegisterConstant publishes a named value in the global dictionary.
func RegisterConstant(name, value string) {
	globalRegistry.AddConstant(name, value)
}

// Register adds a command. Re-registering a name returns the existing ID.
func (r *Registry) Register(name, format string, handler CommandHandler) uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.nameToID[name]; ok {
		return id
	}

	id := r.nextID
	r.nextID++

	r.commands[id] = &Command{ID: id, Name: name, Format: format, Handler: handler}
	r.nameToID[name] = id
	r.rebuildDictionary()

	return id
}

// AddConstant publishes a named value in the dictionary.
func (r *Registry) AddConstant(name, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.constants = append(r.constants, Constant{Name: name, Value: value})
	r.rebuildDictionary()
}

// Lookup retrieves a command by ID.
func (r *Registry) Lookup(id uint16) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[id]
	return cmd, ok
}

// LookupName retrieves a command by name.
func (r *Registry) LookupName(name string) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.nameToID[name]
	if !ok {
		return nil, false
	}
	return r.commands[id], true
}

// Count returns the number of registered commands and responses.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.commands)
}

// Dispatch routes a decoded command to its handler.
func (r *Registry) Dispatch(id uint16, data *[]byte) error {
	cmd, ok := r.Lookup(id)
	if !ok {
		return errors.New("core: unknown command ID " + utoa(uint64(id)))
	}
	if cmd.Handler == nil {
		return errors.New("core: command " + cmd.Name + " has no handler")
	}
	return cmd.Handler(data)
}

// DispatchCommand routes a command through the global registry.
func DispatchCommand(id uint16, data *[]byte) error {
	return globalRegistry.Dispatch(id, data)
}

// GlobalRegistry returns the process-wide registry.
func GlobalRegistry() *Registry {
	return globalRegistry
}

// Dictionary returns the text dictionary: one line per command, response,
// and constant. The host fetches it in chunks through the identify command
// and uses it to resolve names to IDs.
func (r *Registry) Dictionary() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dictionary
}

// rebuildDictionary regenerates the dictionary text. Caller holds r.mu.
//
// Format, line-oriented:
//
//	gotick <version>
//	command <id> <name> [format]
//	response <id> <name> [format]
//	const <name> <value>
func (r *Registry) rebuildDictionary() {
	var b strings.Builder
	b.WriteString("gotick " + version + "\n")

	for id := uint16(0); id < r.nextID; id++ {
		cmd, ok := r.commands[id]
		if !ok {
			continue
		}
		kind := "command"
		if cmd.Handler == nil {
			kind = "response"
		}
		b.WriteString(kind + " " + utoa(uint64(id)) + " " + cmd.Name)
		if cmd.Format != "" {
			b.WriteString(" " + cmd.Format)
		}
		b.WriteString("\n")
	}

	for _, c := range r.constants {
		b.WriteString("const " + c.Name + " " + c.Value + "\n")
	}

	r.dictionary = b.String()
}

// DictionaryChunk returns up to count bytes of the dictionary starting at
// offset, for serving identify requests. Past-the-end offsets return an
// empty chunk, which the host takes as end of data.
func (r *Registry) DictionaryChunk(offset uint32, count uint8) []byte {
	dict := r.Dictionary()
	if offset >= uint32(len(dict)) {
		return nil
	}
	end := offset + uint32(count)
	if end > uint32(len(dict)) {
		end = uint32(len(dict))
	}
	return []byte(dict[offset:end])
}
