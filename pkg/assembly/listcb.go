package assembly

import (
	"strings"

	"github.com/bradfordvt/P2654Model/pkg/rvf"
)

// SupportedCommands answers the source's LISTCB diagnostic callback: the
// list of wire commands a node of this kind accepts as a host callback
// (spec §12 "Supplemented features"). The list always starts with LISTCB,
// the diagnostic command this function and ListCB answer for a kind; no
// node's HostCallback handles a LISTCB frame itself.
func (k Kind) SupportedCommands() []rvf.Command {
	cmds := []rvf.Command{rvf.ListCB}
	switch {
	case k.IsLeaf():
		// Leaves never receive requests; they only emit them, so they
		// have no inbound commands beyond the universal diagnostic.
	case k == KindDataMux || k == KindScanMux:
		cmds = append(cmds, rvf.Write, rvf.Read, rvf.WriteRead, rvf.Scan, rvf.CapScan, rvf.Address, rvf.IsActive)
	case k == KindTAP:
		cmds = append(cmds, rvf.Scan, rvf.CapScan)
	case k == KindJTAGNetwork:
		cmds = append(cmds, rvf.Write, rvf.Read, rvf.WriteRead)
	case k == KindIJTAGNetwork:
		cmds = append(cmds, rvf.Scan, rvf.CapScan)
	case k == KindJTAGControllerAssembly:
		cmds = append(cmds, rvf.Sir, rvf.SirNC, rvf.Sdr, rvf.SdrNC)
	case k == KindPortalRegister:
		cmds = append(cmds, rvf.Write, rvf.Read, rvf.WriteRead)
	}
	return cmds
}

// ListCB renders the node's supported commands as the comma-separated
// string the source's LISTCB callback returns.
func ListCB(k Kind) string {
	cmds := k.SupportedCommands()
	parts := make([]string, len(cmds))
	for i, c := range cmds {
		parts[i] = string(c)
	}
	return strings.Join(parts, ",")
}
