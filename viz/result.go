// ABOUTME: Result type carrying either an accepted spec or the reason it was rejected.
// ABOUTME: Generation stages chain Decode and Validate through Then instead of raising.

package viz

// Result is Ok(spec) or Err(reason).
type Result struct {
	Spec Spec
	Err  error
}

// Ok wraps an accepted spec.
func Ok(s Spec) Result { return Result{Spec: s} }

// Err wraps a rejection reason.
func Err(err error) Result { return Result{Err: err} }

// OK reports whether the result holds a spec.
func (r Result) OK() bool { return r.Err == nil && !r.Spec.IsZero() }

// Then applies f to an Ok result and passes an Err result through unchanged.
func (r Result) Then(f func(Spec) Result) Result {
	if r.Err != nil {
		return r
	}
	return f(r.Spec)
}

// Or returns r when it is Ok, otherwise the result of next.
func (r Result) Or(next func() Result) Result {
	if r.OK() {
		return r
	}
	return next()
}

// Parse runs the full acceptance chain over raw generator text: extract every
// JSON object candidate, decode and validate each, and keep the preferred
// valid one. When nothing is valid the first candidate's rejection is returned.
func Parse(text string) Result {
	candidates := Candidates(text)
	if len(candidates) == 0 {
		return Err(ErrNoJSONObject)
	}
	results := make([]Result, 0, len(candidates))
	for _, c := range candidates {
		results = append(results, Decode([]byte(c)).Then(Validate))
	}
	return Preferred(results)
}

// Preferred returns the valid result whose kind ranks earliest in Kinds.
// Ties keep the earlier result.
func Preferred(results []Result) Result {
	best := -1
	for i, r := range results {
		if !r.OK() {
			continue
		}
		if best < 0 || Rank(r.Spec.Kind()) < Rank(results[best].Spec.Kind()) {
			best = i
		}
	}
	if best >= 0 {
		return results[best]
	}
	if len(results) > 0 {
		return results[0]
	}
	return Err(ErrNoJSONObject)
}

// Rank is the kind's position in the preference order; unknown kinds rank last.
func Rank(k Kind) int {
	for i, known := range Kinds {
		if known == k {
			return i
		}
	}
	return len(Kinds)
}
