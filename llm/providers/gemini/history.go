package gemini

// MergeFunctionResponses folds the function turns answering one call turn
// into a single function turn placed directly after it.
//
// A call turn stays open until its buffered responses are flushed, so plain
// turns between a call and its responses do not detach them. The buffer is
// flushed when a non-function turn arrives with responses pending, or at the
// end of the history. Function turns seen while no call is open pass through
// unchanged. A call answered by nothing gets no synthetic turn. The input is
// not modified.
func MergeFunctionResponses(contents []geminiContent) []geminiContent {
	out := make([]geminiContent, 0, len(contents))
	openIdx := -1 // index in out of the open call turn
	var pending []geminiPart

	flush := func() {
		if len(pending) == 0 {
			return
		}
		merged := geminiContent{Role: roleFunction, Parts: pending}
		at := openIdx + 1
		out = append(out, geminiContent{})
		copy(out[at+1:], out[at:])
		out[at] = merged
		pending = nil
		openIdx = -1
	}

	for _, c := range contents {
		if c.Role == roleFunction {
			if openIdx >= 0 {
				pending = append(pending, c.Parts...)
				continue
			}
			out = append(out, c)
			continue
		}
		flush()
		out = append(out, c)
		if c.isCall() {
			openIdx = len(out) - 1
		}
	}
	flush()
	return out
}
