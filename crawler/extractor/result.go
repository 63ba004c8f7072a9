package extractor

// Field is the extracted value of one pattern. It is one of Value, Pairs,
// Lines or Records, matching the pattern's result type.
type Field interface {
	// Kind is the result type that produced the field
	Kind() ResultType
	// Empty reports whether nothing was extracted
	Empty() bool
}

// Value is a single scalar. Valid is false for a missing or null value.
type Value struct {
	Text  string
	Valid bool
}

// Pair is one key/value entry
type Pair struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Pairs is the result of a key_value pattern
type Pairs []Pair

// Lines is the result of a multiline pattern
type Lines []string

// Records is the result of a container pattern, one Result per repeated node
type Records []Result

func (Value) Kind() ResultType   { return ResultValue }
func (Pairs) Kind() ResultType   { return ResultKeyValue }
func (Lines) Kind() ResultType   { return ResultMultiline }
func (Records) Kind() ResultType { return ResultContainer }

func (v Value) Empty() bool   { return !v.Valid || v.Text == "" }
func (p Pairs) Empty() bool   { return len(p) == 0 }
func (l Lines) Empty() bool   { return len(l) == 0 }
func (r Records) Empty() bool { return len(r) == 0 }

// Result maps pattern keys to their extracted fields
type Result map[string]Field

// String returns the scalar for key; the first entry for list shapes
func (r Result) String(key string) string {
	switch f := r[key].(type) {
	case Value:
		if f.Valid {
			return f.Text
		}
	case Lines:
		if len(f) > 0 {
			return f[0]
		}
	case Pairs:
		if len(f) > 0 {
			return f[0].Value
		}
	}
	return ""
}

// Strings returns every string extracted for key
func (r Result) Strings(key string) []string {
	switch f := r[key].(type) {
	case Value:
		if !f.Empty() {
			return []string{f.Text}
		}
	case Lines:
		return append([]string(nil), f...)
	case Pairs:
		out := make([]string, 0, len(f))
		for _, p := range f {
			out = append(out, p.Value)
		}
		return out
	case Records:
		// Container of links: each record contributes its "url" field.
		out := make([]string, 0, len(f))
		for _, rec := range f {
			if u := rec.String("url"); u != "" {
				out = append(out, u)
			}
		}
		return out
	}
	return nil
}

// Pairs returns the key/value entries for key
func (r Result) Pairs(key string) Pairs {
	if f, ok := r[key].(Pairs); ok {
		return f
	}
	return nil
}

// Records returns the sub-records for key
func (r Result) Records(key string) Records {
	if f, ok := r[key].(Records); ok {
		return f
	}
	return nil
}

// Has reports whether key produced a non-empty field
func (r Result) Has(key string) bool {
	f, ok := r[key]
	return ok && !f.Empty()
}

// Map converts the result into plain maps and slices, e.g. for JSON encoding
func (r Result) Map() map[string]any {
	out := make(map[string]any, len(r))
	for key, field := range r {
		switch f := field.(type) {
		case Value:
			if f.Valid {
				out[key] = f.Text
			} else {
				out[key] = nil
			}
		case Pairs:
			m := make(map[string]string, len(f))
			for _, p := range f {
				m[p.Key] = p.Value
			}
			out[key] = m
		case Lines:
			out[key] = []string(f)
		case Records:
			list := make([]map[string]any, 0, len(f))
			for _, rec := range f {
				list = append(list, rec.Map())
			}
			out[key] = list
		}
	}
	return out
}
