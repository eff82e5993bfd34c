package stabilizer

// State is the lifecycle position of an instance.
//
//	Uninitialized ──► SeekingKeypoints ──► Running ──► Stopped
//	       │                  │                            ▲
//	       └──────────────────┴────────────────────────────┘
//
// Stopped is terminal and reachable from every other state.
type State int32

const (
	// Uninitialized is the state before any resource is acquired.
	Uninitialized State = iota
	// SeekingKeypoints holds the first frame and detects until points exist.
	SeekingKeypoints
	// Running executes the per-frame loop.
	Running
	// Stopped means every resource has been released.
	Stopped
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case SeekingKeypoints:
		return "seeking-keypoints"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// StopReason tells why an instance left the loop.
type StopReason int

const (
	// ReasonNone means the instance has not stopped.
	ReasonNone StopReason = iota
	// ReasonSignal means the keep-running flag was cleared.
	ReasonSignal
	// ReasonStreamEnded means the source ran out of frames.
	ReasonStreamEnded
	// ReasonFailure means a resource could not be acquired; Err holds the cause.
	ReasonFailure
)

func (r StopReason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonSignal:
		return "signal"
	case ReasonStreamEnded:
		return "stream ended"
	case ReasonFailure:
		return "failure"
	default:
		return "unknown"
	}
}
