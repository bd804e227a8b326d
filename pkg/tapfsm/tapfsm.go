// Package tapfsm tracks the IEEE 1149.1 TAP controller's 16-state machine
// and computes the shortest TMS sequence between any two states. It backs
// pkg/driver's hardware-probe implementation, which needs to drive TMS
// itself to reach Shift-IR/Shift-DR before handing TDI/TDO bits to the
// probe.
package tapfsm

import "fmt"

// State is one of the 16 IEEE 1149.1 TAP controller states.
type State uint8

const (
	TestLogicReset State = iota
	RunTestIdle
	SelectDRScan
	CaptureDR
	ShiftDR
	Exit1DR
	PauseDR
	Exit2DR
	UpdateDR
	SelectIRScan
	CaptureIR
	ShiftIR
	Exit1IR
	PauseIR
	Exit2IR
	UpdateIR
)

var names = [...]string{
	"TestLogicReset", "RunTestIdle", "SelectDRScan", "CaptureDR", "ShiftDR",
	"Exit1DR", "PauseDR", "Exit2DR", "UpdateDR", "SelectIRScan", "CaptureIR",
	"ShiftIR", "Exit1IR", "PauseIR", "Exit2IR", "UpdateIR",
}

func (s State) String() string {
	if int(s) < len(names) {
		return names[s]
	}
	return fmt.Sprintf("State(%d)", s)
}

// edge holds where state s transitions to for TMS=0 and TMS=1.
type edge struct{ zero, one State }

// table is the fixed IEEE 1149.1 state diagram; it is data, not policy, so
// it is never reconfigured at runtime.
var table = [...]edge{
	TestLogicReset: {zero: RunTestIdle, one: TestLogicReset},
	RunTestIdle:    {zero: RunTestIdle, one: SelectDRScan},
	SelectDRScan:   {zero: CaptureDR, one: SelectIRScan},
	CaptureDR:      {zero: ShiftDR, one: Exit1DR},
	ShiftDR:        {zero: ShiftDR, one: Exit1DR},
	Exit1DR:        {zero: PauseDR, one: UpdateDR},
	PauseDR:        {zero: PauseDR, one: Exit2DR},
	Exit2DR:        {zero: ShiftDR, one: UpdateDR},
	UpdateDR:       {zero: RunTestIdle, one: SelectDRScan},
	SelectIRScan:   {zero: CaptureIR, one: TestLogicReset},
	CaptureIR:      {zero: ShiftIR, one: Exit1IR},
	ShiftIR:        {zero: ShiftIR, one: Exit1IR},
	Exit1IR:        {zero: PauseIR, one: UpdateIR},
	PauseIR:        {zero: PauseIR, one: Exit2IR},
	Exit2IR:        {zero: ShiftIR, one: UpdateIR},
	UpdateIR:       {zero: RunTestIdle, one: SelectDRScan},
}

// Step returns the state reached by clocking TCK once from cur with the
// given TMS value.
func Step(cur State, tms bool) State {
	e := table[cur]
	if tms {
		return e.one
	}
	return e.zero
}

// Path is a TMS drive pattern together with the state visited after each
// bit, States[0] being the starting state.
type Path struct {
	TMS    []bool
	States []State
}

// Machine tracks a TAP controller's state locally; it issues no I/O of its
// own; a caller forwards the TMS sequences it produces to a probe.
type Machine struct {
	state State
}

// New returns a Machine initialized to Test-Logic-Reset, the state every
// TAP controller powers up in.
func New() *Machine {
	return &Machine{state: TestLogicReset}
}

// Current reports the state the machine believes the controller is in.
func (m *Machine) Current() State {
	return m.state
}

// Clock advances the machine by one TCK cycle.
func (m *Machine) Clock(tms bool) State {
	m.state = Step(m.state, tms)
	return m.state
}

// ResetSequence returns the IEEE-recommended five TMS=1 cycles that force
// Test-Logic-Reset from any state, advancing the machine as a side effect.
func (m *Machine) ResetSequence() Path {
	p := Path{TMS: make([]bool, 5), States: make([]State, 6)}
	p.States[0] = m.state
	for i := 0; i < 5; i++ {
		p.TMS[i] = true
		p.States[i+1] = m.Clock(true)
	}
	return p
}

// GoTo computes the shortest TMS path from the machine's current state to
// target via breadth-first search over the state diagram, advances the
// machine along it, and returns the path.
func (m *Machine) GoTo(target State) (Path, error) {
	p, err := shortestPath(m.state, target)
	if err != nil {
		return Path{}, err
	}
	for _, bit := range p.TMS {
		m.Clock(bit)
	}
	return p, nil
}

func shortestPath(from, to State) (Path, error) {
	if int(from) >= len(table) {
		return Path{}, fmt.Errorf("tapfsm: invalid start state %d", from)
	}
	if int(to) >= len(table) {
		return Path{}, fmt.Errorf("tapfsm: invalid target state %d", to)
	}
	if from == to {
		return Path{States: []State{from}}, nil
	}

	type frontierNode struct {
		state  State
		tms    []bool
		states []State
	}

	queue := []frontierNode{{state: from, states: []State{from}}}
	visited := map[State]bool{from: true}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for _, bit := range [2]bool{false, true} {
			next := Step(cur.state, bit)
			if visited[next] {
				continue
			}
			tms := append(append([]bool{}, cur.tms...), bit)
			states := append(append([]State{}, cur.states...), next)
			if next == to {
				return Path{TMS: tms, States: states}, nil
			}
			visited[next] = true
			queue = append(queue, frontierNode{state: next, tms: tms, states: states})
		}
	}
	return Path{}, fmt.Errorf("tapfsm: no path from %s to %s", from, to)
}
