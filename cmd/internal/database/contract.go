package database

import "context"

type Prober interface {
	// Probe returns nil as soon as the database engine accepts connections.
	Probe(ctx context.Context) error
}

type Initializer interface {
	// Check indicates whether the initialization still needs to be run.
	Check(ctx context.Context) (bool, error)

	// Apply runs the initialization against the database. For script-driven
	// databases the script is read from the given path, which must be safe to
	// execute more than once.
	Apply(ctx context.Context, scriptPath string) error
}

type Database interface {
	Prober
	Initializer
}
