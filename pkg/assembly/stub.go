package assembly

import (
	"github.com/bradfordvt/P2654Model/pkg/link"
	"github.com/bradfordvt/P2654Model/pkg/modelerr"
	"github.com/bradfordvt/P2654Model/pkg/rvf"
)

// Stub implements the kinds the source leaves empty: I2CClient and
// ParallelToSerial (spec §9 open question 3). Their Python counterparts
// have apply bodies referencing an unbound wrvf; this module keeps them as
// explicit placeholders rather than guessing at behavior no source commit
// ever implemented.
type Stub struct {
	base
}

// NewStub constructs a placeholder node of the given stub kind.
func NewStub(uid int, name string, kind Kind, tracker PendingTracker, stop *link.Stop) (*Stub, error) {
	if kind != KindI2CClient && kind != KindParallelToSerial {
		return nil, modelerr.New("assembly: NewStub: kind %s is not a stub kind", kind)
	}
	return &Stub{base: newBase(uid, name, kind, true, tracker, stop)}, nil
}

func (s *Stub) Apply() error {
	return modelerr.New("assembly: %s %s: not implemented", s.kind, s.name)
}

func (s *Stub) HostCallback(f rvf.Frame) error {
	return modelerr.New("assembly: %s %s: not implemented", s.kind, s.name)
}

func (s *Stub) RespHandler(f rvf.Frame) {}
