package assembly

// Kind identifies which concrete node variant a Node is. The Python source
// dispatches on isinstance(self, ...) throughout; this module replaces that
// with a closed set of tags and dispatch by variant, per the REDESIGN note
// in spec §9.
type Kind int

const (
	KindDataRegister Kind = iota
	KindScanRegister
	KindDataMux
	KindScanMux
	KindTAP
	KindJTAGNetwork
	KindIJTAGNetwork
	KindJTAGControllerAssembly
	KindPortalRegister
	KindI2CClient
	KindParallelToSerial
)

func (k Kind) String() string {
	switch k {
	case KindDataRegister:
		return "DataRegister"
	case KindScanRegister:
		return "ScanRegister"
	case KindDataMux:
		return "DataMux"
	case KindScanMux:
		return "ScanMux"
	case KindTAP:
		return "TAP"
	case KindJTAGNetwork:
		return "JTAGNetwork"
	case KindIJTAGNetwork:
		return "IJTAGNetwork"
	case KindJTAGControllerAssembly:
		return "JTAGControllerAssembly"
	case KindPortalRegister:
		return "PortalRegister"
	case KindI2CClient:
		return "I2CClient"
	case KindParallelToSerial:
		return "ParallelToSerial"
	default:
		return "Unknown"
	}
}

// IsLeaf reports whether k is one of the leaf register kinds.
func (k Kind) IsLeaf() bool {
	return k == KindDataRegister || k == KindScanRegister
}

// IsLinker reports whether k is one of the path-selecting kinds.
func (k Kind) IsLinker() bool {
	return k == KindDataMux || k == KindScanMux || k == KindTAP
}

// IsSuper reports whether k is one of the hierarchical-composite kinds.
func (k Kind) IsSuper() bool {
	switch k {
	case KindJTAGNetwork, KindIJTAGNetwork, KindJTAGControllerAssembly, KindPortalRegister:
		return true
	default:
		return false
	}
}

// PathState mirrors the source's path_state attribute (spec §3). Several
// code paths that reference it in the original (explore_cross_subpath,
// the Actions enum) are themselves legacy/unused machinery in the source;
// this module carries the field for fidelity without reviving that dead
// logic.
type PathState int

const (
	Inactive PathState = iota
	Active
)
