package llm

// UnknownTokens is the InTokens value used when a vendor does not report
// input token counts.
const UnknownTokens = -1

// Stats contains token counts and timing for one generation. Every field is
// optional so partial updates can be expressed.
type Stats struct {
	// InTokens is the input token count, UnknownTokens (-1) when unknown.
	InTokens *int `json:"chatInTokens,omitempty"`

	// OutTokens is the output token count.
	OutTokens *int `json:"chatOutTokens,omitempty"`

	// OutRate is the output rate in tokens per second.
	OutRate *float64 `json:"chatOutRate,omitempty"`

	// TimeInner is the vendor-reported generation time in seconds.
	TimeInner *float64 `json:"timeInner,omitempty"`

	// TimeOuter is the wall time in seconds measured from dispatch start.
	TimeOuter *float64 `json:"timeOuter,omitempty"`
}

// merge returns a copy of s with every non-nil field of next applied.
func (s Stats) merge(next *Stats) Stats {
	if next == nil {
		return s
	}
	if next.InTokens != nil {
		s.InTokens = next.InTokens
	}
	if next.OutTokens != nil {
		s.OutTokens = next.OutTokens
	}
	if next.OutRate != nil {
		s.OutRate = next.OutRate
	}
	if next.TimeInner != nil {
		s.TimeInner = next.TimeInner
	}
	if next.TimeOuter != nil {
		s.TimeOuter = next.TimeOuter
	}
	return s
}

// Metadata is the cumulative result of every Set applied to a stream.
type Metadata struct {
	Model string `json:"model,omitempty"`
	Stats Stats  `json:"stats"`
}

// Apply folds a Set into m. Absent fields are left untouched.
func (m *Metadata) Apply(s Set) {
	if s.Model != nil {
		m.Model = *s.Model
	}
	m.Stats = m.Stats.merge(s.Stats)
}

// Int returns a pointer to v, for building Stats literals.
func Int(v int) *int { return &v }

// Float returns a pointer to v, for building Stats literals.
func Float(v float64) *float64 { return &v }
