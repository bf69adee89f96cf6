// Package cmd is the transport independent command core. A command has a
// name, a description and Run. Adapters decide how commands are registered
// with a transport and what an invocation carries.
package cmd

import "context"

// Invocation is the input of a single run. Data holds the adapter's own
// context, for example a slash interaction with its session.
type Invocation struct {
	Args []string
	Data any
}

type Command interface {
	Name() string
	Description() string
	Run(ctx context.Context, inv *Invocation) error
}
