package identity

import (
	"sort"
	"time"
)

// IiState is the lifecycle state of an Internet Identity passkey.
type IiState int

const (
	IiStateUnknown IiState = iota
	IiStateInitial
	IiStateCodeObtained
	IiStateActive
	IiStateDeactivated
)

var iiStateNames = map[IiState]string{
	IiStateInitial:      "Initial",
	IiStateCodeObtained: "CodeObtained",
	IiStateActive:       "Active",
	IiStateDeactivated:  "Deactivated",
}

func (s IiState) String() string {
	if name, ok := iiStateNames[s]; ok {
		return name
	}
	return "Unknown"
}

// ParseIiState maps a persisted state name back to an IiState.
func ParseIiState(name string) (IiState, bool) {
	for state, candidate := range iiStateNames {
		if candidate == name {
			return state, true
		}
	}
	return IiStateUnknown, false
}

// InterfaceType records how a canister interface was obtained.
type InterfaceType int

const (
	InterfaceUnknown InterfaceType = iota
	InterfaceAutomatic
	InterfaceFailed
	InterfaceManual
)

var interfaceTypeNames = map[InterfaceType]string{
	InterfaceAutomatic: "AUTOMATIC",
	InterfaceFailed:    "FAILED",
	InterfaceManual:    "MANUAL",
}

func (t InterfaceType) String() string {
	if name, ok := interfaceTypeNames[t]; ok {
		return name
	}
	return "UNKNOWN"
}

// ParseInterfaceType maps a persisted interface type name back to an
// InterfaceType.
func ParseInterfaceType(name string) (InterfaceType, bool) {
	for t, candidate := range interfaceTypeNames {
		if candidate == name {
			return t, true
		}
	}
	return InterfaceUnknown, false
}

// InternetIdentity is the persisted part of an Internet Identity anchor.
type InternetIdentity struct {
	Anchor       string
	State        IiState
	PasskeyPEM   string
	CreationDate time.Time
	// ActivationDate is nil until the passkey was activated.
	ActivationDate *time.Time
}

// CanisterCacheInfo holds the interfaces known for one canister and which
// of them is in use.
type CanisterCacheInfo struct {
	Active     InterfaceType
	Interfaces map[InterfaceType]string
}

// NewCanisterCacheInfo returns info holding idl as the active interface.
func NewCanisterCacheInfo(idl string, t InterfaceType) CanisterCacheInfo {
	return CanisterCacheInfo{
		Active:     t,
		Interfaces: map[InterfaceType]string{t: idl},
	}
}

// ActiveInterface returns the IDL of the active interface type.
func (c CanisterCacheInfo) ActiveInterface() (string, bool) {
	idl, ok := c.Interfaces[c.Active]
	return idl, ok
}

func sortedInterfaceTypes(m map[InterfaceType]string) []InterfaceType {
	out := make([]InterfaceType, 0, len(m))
	for t := range m {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
