package core

// Location places an element geographically, for reporting only.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	City      string  `json:"city"`
	Region    string  `json:"region"`
}

// Element is a node of the optical line system. Propagate transforms the
// spectrum in place the way the device does; elements that hold no
// mutable state ignore sim.
type Element interface {
	UID() string
	Name() string
	Location() Location
	// Passive reports whether the element neither amplifies nor attenuates
	// per-channel power on its own.
	Passive() bool
	Propagate(si *SpectralInformation, sim SimParams) error
	// Clone returns an independent copy safe to propagate through while
	// the original serves other paths.
	Clone() Element
}

// nodeInfo carries the identity fields common to every element.
type nodeInfo struct {
	uid      string
	name     string
	location Location
}

func (n nodeInfo) UID() string        { return n.uid }
func (n nodeInfo) Name() string       { return n.name }
func (n nodeInfo) Location() Location { return n.location }

// Fused models a passive splice or attenuator pad with a flat loss.
type Fused struct {
	nodeInfo
	LossDB float64
}

// NewFused builds a splice with the given uid and loss in dB.
func NewFused(uid, name string, loc Location, lossDB float64) *Fused {
	return &Fused{nodeInfo: nodeInfo{uid: uid, name: name, location: loc}, LossDB: lossDB}
}

func (f *Fused) Passive() bool { return true }

func (f *Fused) Propagate(si *SpectralInformation, _ SimParams) error {
	att := DB2Lin(-f.LossDB)
	si.ApplyUniformGain(att)
	pref := si.Pref()
	pref.PSpanI -= f.LossDB
	si.SetPref(pref)
	return nil
}

func (f *Fused) Clone() Element {
	dup := *f
	return &dup
}
