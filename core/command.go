package core

import (
	"sort"
	"sync"

	"github.com/google/shlex"
)

// CommandHandler handles one command line. args excludes the verb. The
// returned string is the reply value; an empty reply with a nil error is
// sent as "ok".
type CommandHandler func(args []string) (string, error)

// Command represents one verb of the text dialect
type Command struct {
	Name    string
	Usage   string // argument synopsis for help
	MinArgs int
	Handler CommandHandler
}

// CommandRegistry holds all registered commands
type CommandRegistry struct {
	mu       sync.RWMutex
	commands map[string]*Command
}

// NewCommandRegistry creates a new command registry
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{
		commands: make(map[string]*Command),
	}
}

// Register adds a command to the registry. Registering a name twice keeps
// the first handler.
func (r *CommandRegistry) Register(name, usage string, minArgs int, handler CommandHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.commands[name]; exists {
		return
	}
	r.commands[name] = &Command{
		Name:    name,
		Usage:   usage,
		MinArgs: minArgs,
		Handler: handler,
	}
}

// GetCommand retrieves a command by name
func (r *CommandRegistry) GetCommand(name string) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[name]
	return cmd, ok
}

// Count returns the number of registered commands
func (r *CommandRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.commands)
}

// Names returns every verb in sorted order
func (r *CommandRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch runs one line and returns the reply without a line terminator.
// Blank lines produce an empty reply.
func (r *CommandRegistry) Dispatch(line string) string {
	fields, err := shlex.Split(line)
	if err != nil {
		return Reply("", fail(Malformed, "parse", err.Error()))
	}
	if len(fields) == 0 {
		return ""
	}

	cmd, ok := r.GetCommand(fields[0])
	if !ok {
		return Reply("", fail(UnknownCommand, "dispatch", fields[0]))
	}
	args := fields[1:]
	if len(args) < cmd.MinArgs {
		return Reply("", fail(BadArgs, cmd.Name, "usage: "+cmd.Name+" "+cmd.Usage))
	}
	return Reply(cmd.Handler(args))
}

// Reply formats a handler result as a console reply line.
func Reply(value string, err error) string {
	if err != nil {
		return "err " + string(CodeOf(err))
	}
	if value == "" {
		return "ok"
	}
	return value
}
