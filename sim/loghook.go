package sim

import (
	"log"
)

// A LogHook is a hook that writes what happens in the simulation into a log.
type LogHook interface {
	Hook
}

// LogHookBase provides the logger shared by all LogHooks.
type LogHookBase struct {
	*log.Logger
}

var _ LogHook = (*EventLogger)(nil)
