package domain

import "fmt"

// ViolationError reports a value rejected by a property's domain. It always
// names the property, the rejected value, and what the domain accepts.
type ViolationError struct {
	Property string
	Value    any
	Domain   string
}

func (e *ViolationError) Error() string {
	return fmt.Sprintf("property %q rejects value %v: requires %s", e.Property, e.Value, e.Domain)
}

// UnknownPropertyError reports a reference to a property the owning
// definition does not declare. This is a modeling bug, never ignored.
type UnknownPropertyError struct {
	Class    string
	Property string
}

func (e *UnknownPropertyError) Error() string {
	return fmt.Sprintf("class %q has no property %q", e.Class, e.Property)
}
