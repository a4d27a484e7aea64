// Package logctx wires up the per-subsystem btclog loggers shared across
// the daemon. A single backend is created at startup and every package
// that wants to log pulls a tagged Logger from it, mirroring the
// subsystem-logger convention lnd itself uses (peerLog, srvrLog, ...).
package logctx

import (
	"io"
	"os"

	"github.com/btcsuite/btclog"
)

// Subsystem tags. Kept short and all-caps, in the style of the daemon's
// existing subsystems (PEER, SRVR, FNDG, ...).
const (
	SubsystemP2P       = "P2PN"
	SubsystemReconnect = "RECN"
	SubsystemPubSub    = "PSUB"
	SubsystemDirect    = "DMSG"
	SubsystemRouter    = "MROU"
	SubsystemProcessor = "MPRC"
	SubsystemAuction   = "QAUC"
	SubsystemSession   = "SESS"
	SubsystemFacade    = "FACD"
	SubsystemLedger    = "LDGR"
	SubsystemModel     = "MODL"
	SubsystemIdentity  = "IDNT"
	SubsystemDaemon    = "DAEM"
)

var backend = btclog.NewBackend(os.Stdout)

// SetOutput redirects all future subsystem loggers to w. Must be called
// before any Logger() calls whose output matters; loggers already created
// keep writing to the previous backend.
func SetOutput(w io.Writer) {
	backend = btclog.NewBackend(w)
}

// Logger returns the logger for the named subsystem, defaulting to Info
// level. Callers keep the returned value in a package-level var, exactly
// as lnd's own subsystems do.
func Logger(subsystem string) btclog.Logger {
	l := backend.Logger(subsystem)
	l.SetLevel(btclog.LevelInfo)
	return l
}

// SetLevel adjusts the level of a previously created logger. The daemon
// applies config.Config.LogLevel with it to its own logger only.
func SetLevel(l btclog.Logger, level string) {
	lvl, ok := btclog.LevelFromString(level)
	if !ok {
		return
	}
	l.SetLevel(lvl)
}
