// Variable dumper (C6).
//
// Eligibility filtering (skip functions, partials, cyclic containers)
// is the host Editor's job — GlobalVars already yields only survivors.
// This file's job is the "already-dumped" bookkeeping: globals are
// written directly from the live editor's state, so a previous-file
// Variable record for a name the editor still has is redundant and
// dropped (Write merges the previous file first, and markDumped then
// discards the kept record for each name the editor dumps); one for a
// name the editor no longer has is a variable that existed in an
// earlier session and is kept so it survives across sessions.
package shada

// variablesMerger tracks which global names have already been emitted
// from the live editor, and what should pass through from the
// previous file for names it doesn't have anymore.
type variablesMerger struct {
	dumped map[string]bool
	kept   map[string]VariablePayload
	order  []string
}

func newVariablesMerger() *variablesMerger {
	return &variablesMerger{
		dumped: make(map[string]bool),
		kept:   make(map[string]VariablePayload),
	}
}

// markDumped records that name was (or will be) written directly from
// the editor's current state.
func (m *variablesMerger) markDumped(name string) {
	m.dumped[name] = true
	delete(m.kept, name)
}

// mergeFile offers a Variable record read from the previous file. It
// is dropped if the editor already owns that name; otherwise kept,
// newest timestamp winning among repeated file entries.
func (m *variablesMerger) mergeFile(name string, value []byte, isBlob bool, ts uint64) {
	if m.dumped[name] {
		return
	}
	if cur, ok := m.kept[name]; ok {
		if ts < cur.Timestamp {
			return
		}
	} else {
		m.order = append(m.order, name)
	}
	m.kept[name] = VariablePayload{Name: name, Value: value, IsBlob: isBlob, Timestamp: ts, FromFile: true}
}

// passthrough returns the stale, file-only variables to re-emit, in
// first-seen order.
func (m *variablesMerger) passthrough() []VariablePayload {
	out := make([]VariablePayload, 0, len(m.order))
	for _, name := range m.order {
		if v, ok := m.kept[name]; ok {
			out = append(out, v)
		}
	}
	return out
}
