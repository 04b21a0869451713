package supervisor

// Signal is the set of process signals the supervisor understands,
// abstracted from the host OS's actual signal numbers. sendSignal and
// setPriority are implemented per-platform (signal_unix.go,
// signal_windows.go).
type Signal string

const (
	// SignalTerm is the soft-terminate signal: Stop's default.
	SignalTerm Signal = "TERM"
	// SignalKill is the hard-kill signal: unconditional, never ignored.
	SignalKill Signal = "KILL"
	// SignalStop suspends the process (job-control stop).
	SignalStop Signal = "STOP"
	// SignalCont resumes a suspended process.
	SignalCont Signal = "CONT"
	// SignalInt is the interrupt signal.
	SignalInt Signal = "INT"
)
