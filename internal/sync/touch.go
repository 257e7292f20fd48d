package sync

// Mark opens a read of remote state and returns its token. Rows the engine inserts,
// updates or deletes after Mark are newer than anything that read returns, so Merge
// and Fresh leave them alone. Close the read with Done.
func (e *Engine) Mark() uint64 {
	e.open[e.gen]++
	return e.gen
}

// Done closes a read opened by Mark and forgets changes no open read can see.
func (e *Engine) Done(mark uint64) {
	if e.open[mark] <= 1 {
		delete(e.open, mark)
	} else {
		e.open[mark]--
	}
	if len(e.open) == 0 {
		clear(e.touched)
		return
	}
	floor := e.gen
	for m := range e.open {
		floor = min(floor, m)
	}
	for id, g := range e.touched {
		if g <= floor {
			delete(e.touched, id)
		}
	}
}

// ChangedSince reports whether id was inserted, updated or deleted after mark.
func (e *Engine) ChangedSince(mark uint64, id string) bool {
	g, ok := e.touched[id]
	return ok && g > mark
}

// touch records a change to id. Nothing is kept while no read is open.
func (e *Engine) touch(id string) {
	e.gen++
	if len(e.open) > 0 {
		e.touched[id] = e.gen
	}
}
