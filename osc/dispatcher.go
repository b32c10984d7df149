package osc

import (
	"errors"
	"regexp"
	"strings"
	"sync"
)

// Handler handles OSC messages received on the data channel.
type Handler interface {
	HandleMessage(msg *Message)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(msg *Message)

// HandleMessage calls f(msg).
func (f HandlerFunc) HandleMessage(msg *Message) {
	f(msg)
}

// Dispatcher routes messages to the handlers registered for their address.
// The incoming address may be an OSC address pattern ('*', '?', '[]', '{,}');
// handler addresses are literal.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewDispatcher returns an empty Dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]Handler)}
}

// AddMsgHandler registers handler for the literal address.
func (d *Dispatcher) AddMsgHandler(address string, handler Handler) error {
	if !strings.HasPrefix(address, "/") {
		return ErrInvalidAddress
	}
	if strings.ContainsAny(address, "*?,[]{}# ") {
		return errors.New("osc: handler address may not contain any of \"*?,[]{}# \"")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.handlers[address]; ok {
		return errors.New("osc: address " + address + " already has a handler")
	}
	d.handlers[address] = handler
	return nil
}

// Dispatch calls every handler whose address matches msg.Address and
// returns how many were called.
func (d *Dispatcher) Dispatch(msg *Message) int {
	exp, err := addressRegexp(msg.Address)
	if err != nil {
		return 0
	}

	d.mu.RLock()
	matched := make([]Handler, 0, 1)
	for address, handler := range d.handlers {
		if exp.MatchString(address) {
			matched = append(matched, handler)
		}
	}
	d.mu.RUnlock()

	for _, h := range matched {
		h.HandleMessage(msg)
	}
	return len(matched)
}

// Match reports whether the message address, read as a pattern, matches the
// literal address. Case sensitive.
func (msg *Message) Match(address string) bool {
	exp, err := addressRegexp(msg.Address)
	if err != nil {
		return false
	}
	return exp.MatchString(address)
}

var patternReplacer = strings.NewReplacer(
	".", `\.`,
	"(", `\(`,
	")", `\)`,
	"+", `\+`,
	"$", `\$`,
	"^", `\^`,
	"|", `\|`,
	`\`, `\\`,
	"*", "[^/]*",
	"?", "[^/]",
	"{", "(",
	",", "|",
	"}", ")",
	"[!", "[^",
)

// addressRegexp translates an OSC address pattern into an anchored regular
// expression. Patterns arrive from the network, so compile errors are
// returned rather than panicking.
func addressRegexp(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile("^(?:" + patternReplacer.Replace(pattern) + ")$")
}
