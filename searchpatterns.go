// Search pattern & substitution merger (§4.7): two pattern slots
// (normal, substitute) and one replacement-string slot, each
// newest-timestamp-wins against the live editor.
package shada

// searchMerger holds the three slots live during one write or read
// pass.
type searchMerger struct {
	search      SearchEntry
	searchSet   bool
	substitute  SearchEntry
	substSet    bool
	replacement StringEntry
	replSet     bool
}

func (m *searchMerger) mergeSearch(e SearchEntry) {
	if !m.searchSet || e.Timestamp >= m.search.Timestamp {
		m.search = e
		m.searchSet = true
	}
}

func (m *searchMerger) mergeSubstitute(e SearchEntry) {
	if !m.substSet || e.Timestamp >= m.substitute.Timestamp {
		m.substitute = e
		m.substSet = true
	}
}

func (m *searchMerger) mergeReplacement(e StringEntry) {
	if !m.replSet || e.Timestamp >= m.replacement.Timestamp {
		m.replacement = e
		m.replSet = true
	}
}

// applyToEditor pushes each merged slot that is set into ed through
// SetSearchPattern, SetSubstitutePattern and SetReplacementString. The
// is_last_used/highlighted flags are passed along inside the
// SearchEntry unchanged; no separate tilde-replacement hook is called
// for the replacement string.
func (m *searchMerger) applyToEditor(ed Editor) {
	if m.searchSet {
		ed.SetSearchPattern(m.search)
	}
	if m.substSet {
		ed.SetSubstitutePattern(m.substitute)
	}
	if m.replSet {
		ed.SetReplacementString(m.replacement)
	}
}
