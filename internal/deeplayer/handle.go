package deeplayer

// Handle is a refcounted reference to a deep layer. Two handles refer to
// the same layer iff their ID is equal. Handles are safe to copy;
// copying does not itself take a reference — callers that need to keep a
// layer alive call Ref explicitly, which is how a façade's
// reference-holding set owns its increments.
type Handle struct {
	store *Store
	ID    LayerID
}

// NewHandle wraps id without taking an additional reference; the
// reference created by CreatePolygonLayer is the first one.
func NewHandle(store *Store, id LayerID) Handle {
	return Handle{store: store, ID: id}
}

// Ref takes an additional reference on the underlying layer.
func (h Handle) Ref() Handle {
	h.store.Ref(h.ID)
	return h
}

// Release drops a reference taken via Ref or the handle's creation.
func (h Handle) Release() {
	h.store.Unref(h.ID)
}
