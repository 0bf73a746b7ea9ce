// Package providers wires the built-in gallery providers into a registry.
package providers

import (
	"errors"

	"galleryvault/internal/provider"
	"galleryvault/internal/providers/direct"
	"galleryvault/internal/providers/panda"
)

// Builtin returns the descriptors of every built-in provider.
func Builtin() []provider.Registration {
	return []provider.Registration{
		panda.Registration(),
		direct.Registration(),
	}
}

// Registrar is the part of the registry used here.
type Registrar interface {
	Register(reg provider.Registration) error
}

// RegisterAll registers every built-in provider. Registering twice is
// harmless.
func RegisterAll(r Registrar) error {
	var errs []error
	for _, reg := range Builtin() {
		errs = append(errs, r.Register(reg))
	}
	return errors.Join(errs...)
}
