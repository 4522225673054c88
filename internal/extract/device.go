package extract

import (
	"netextract/internal/deeplayer"
	"netextract/internal/layout"
	"netextract/pkg/geom"
)

// DeviceTerminal is one named terminal of a recognized device: a shape
// drawn inside the device's abstract cell on a source layer dedicated to
// that terminal. The façade turns every terminal layer it sees into a
// deep layer and connects it once device recognition finishes, so each
// terminal clusters exactly like an ordinary piece of geometry.
type DeviceTerminal struct {
	Name  string
	Layer layout.SourceLayer
	Shape layout.ShapeRef
}

// RecognizedDevice is one device instance an extractor found: an
// abstract cell to synthesize inside Parent, placed under Trans, with
// one DeviceTerminal per pin.
type RecognizedDevice struct {
	Kind      string
	Parent    layout.CellID
	Trans     geom.Trans
	Terminals []DeviceTerminal
}

// DeviceExtractor is the injected device-recognition capability.
//
// It inspects shapes on the caller's named input layers — read through
// store, the same deep-layer storage every connectivity declaration
// reads through — and reports the devices it recognizes. It never
// mutates the layout or registry directly; ExtractDevices on the façade
// does that on its behalf, so every deep layer created along the way
// stays inside the façade's own reference-holding set.
type DeviceExtractor interface {
	ExtractDevices(store *deeplayer.Store, layersByName map[string]deeplayer.LayerID) ([]RecognizedDevice, error)
}
