package cacheapi

import (
	"fmt"
	"net/http"
	"strings"
)

// Command is a cache operation.
type Command string

const (
	CommandGet    Command = "get"
	CommandSet    Command = "set"
	CommandDelete Command = "delete"
)

// verbs maps each command to its HTTP verb. Not modified after init.
var verbs = map[Command]string{
	CommandGet:    http.MethodGet,
	CommandSet:    http.MethodPost,
	CommandDelete: http.MethodDelete,
}

// Verb returns the HTTP verb for the command, or "" for an unknown command.
func (c Command) Verb() string {
	return verbs[c]
}

// Valid reports whether the command is known.
func (c Command) Valid() bool {
	_, ok := verbs[c]
	return ok
}

// ParseCommand converts a command name into a Command.
func ParseCommand(name string) (Command, error) {
	c := Command(strings.ToLower(strings.TrimSpace(name)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownCommand, name)
	}
	return c, nil
}

// KeyType tells how a key given as text is sent to the server.
type KeyType int

const (
	KeyString KeyType = iota
	KeyInt
)

func (k KeyType) String() string {
	switch k {
	case KeyInt:
		return "int"
	default:
		return "string"
	}
}

// ValueType tells how a value given as text is sent to the server.
type ValueType int

const (
	ValueString ValueType = iota
	ValueInt
	ValueBool
)

func (v ValueType) String() string {
	switch v {
	case ValueInt:
		return "int"
	case ValueBool:
		return "bool"
	default:
		return "string"
	}
}

// KeyTypeFromFlags maps --string-key/--int-key style flags onto a KeyType.
// At most one flag may be set.
func KeyTypeFromFlags(isString, isInt bool) (KeyType, error) {
	if isString && isInt {
		return KeyString, fmt.Errorf("%w: key cannot be both string and int", ErrConflictingTypeHints)
	}
	if isInt {
		return KeyInt, nil
	}
	return KeyString, nil
}

// ValueTypeFromFlags maps value flags onto a ValueType. At most one flag may be set.
func ValueTypeFromFlags(isString, isInt, isBool bool) (ValueType, error) {
	n := 0
	for _, set := range []bool{isString, isInt, isBool} {
		if set {
			n++
		}
	}
	if n > 1 {
		return ValueString, fmt.Errorf("%w: value accepts one type only", ErrConflictingTypeHints)
	}

	switch {
	case isInt:
		return ValueInt, nil
	case isBool:
		return ValueBool, nil
	default:
		return ValueString, nil
	}
}

// CommandConfig describes a single command.
type CommandConfig struct {
	Command Command
	Key     string

	// Value is nil when no value is sent.
	Value *string

	KeyType   KeyType
	ValueType ValueType
}

// StringValue returns a pointer to v, for use in CommandConfig.Value.
func StringValue(v string) *string {
	return &v
}
