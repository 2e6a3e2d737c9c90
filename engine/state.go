package engine

// State identifies one of the possible states engine can be in.
type State interface {
	state()
	String() string
}

// states
type (
	idleState    struct{}
	runningState struct{}
)

// states variables
var (
	Idle    idleState    // Idle means that engine can be started.
	Running runningState // Running means that stream delivers callbacks.
)

func (idleState) state()    {}
func (runningState) state() {}

func (idleState) String() string {
	return "idle"
}

func (runningState) String() string {
	return "running"
}
