package scheduler

import "github.com/joeycumines/logiface"

// Logger is the structured-logging facade the run loop and its caller use,
// the same generic logiface.Logger[Event] pattern used elsewhere in the
// teacher's monorepo (e.g. sql/export.Exporter.Logger) in place of the
// hand-rolled Logger/DefaultLogger interface eventloop/logging.go defines.
// A nil *Logger is safe to use: logiface no-ops a nil receiver's builders.
type Logger = logiface.Logger[logiface.Event]
