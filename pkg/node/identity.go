package node

import (
	"github.com/denisbrodbeck/machineid"
	"github.com/google/uuid"
)

// MachineID retrieves the ID identifying the machine, hashed for the
// application so the raw ID isn't exposed.
func MachineID() (string, error) {
	return machineid.ProtectedID("plc.go")
}

// UniqueID derives the 128-bit GetInfo unique ID from the machine ID and
// the node name, stable across restarts.
func UniqueID(machineID, name string) [16]byte {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(machineID+"/"+name))
}

// EdgeID derives a Sparkplug edge node ID from the machine ID.
func EdgeID(machineID string) string {
	id := uuid.NewSHA1(uuid.NameSpaceOID, []byte(machineID)).String()
	return "plc-" + id[:8]
}
