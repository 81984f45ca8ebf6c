package rheap

// FieldWriteBarrier implements spec.md §4.1's Field barrier, applied
// before an assignment `obj.field = value`: if obj is black and value
// is white, shade value gray (or, mid-sweep, repaint obj the
// allocation color so a newly-discovered edge from an
// already-swept-safe object still gets retraced). Every component
// that writes a heap pointer into a heap object's slot (robject's
// ivar insert, rbuiltin's array/hash element writes, rvm's upvar
// writes) MUST call this before the write is observable; spec.md §4.1
// is explicit that skipping it is undefined behavior from the
// collector's perspective.
func (h *Heap) FieldWriteBarrier(obj, value GCObject) {
	if obj == nil || value == nil {
		return
	}
	objHdr := obj.Header()
	valHdr := value.Header()
	if objHdr.color != ColorBlack || !valHdr.color.IsWhite() {
		return
	}
	if h.phase == PhaseSweep {
		objHdr.color = h.allocColor
		return
	}
	h.shade(value)
}

// ObjectWriteBarrier implements the Object barrier: applied after a
// self-mutating operation whose new pointees are hard to enumerate
// precisely at the call site (array growth via append, a bulk hash
// merge). It repaints obj gray and links it into the variable-gray
// list, which is retraversed during final mark so every pointee ends
// up shaded even though no single FieldWriteBarrier call captured
// them individually.
func (h *Heap) ObjectWriteBarrier(obj GCObject) {
	if obj == nil {
		return
	}
	hdr := obj.Header()
	if hdr.color != ColorBlack {
		return
	}
	hdr.color = ColorGray
	if !hdr.HasFlag(FlagVarGray) {
		hdr.SetFlag(FlagVarGray)
		h.varGray = append(h.varGray, obj)
	}
}
