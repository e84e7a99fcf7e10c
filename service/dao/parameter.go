package dao

// Parameter is a named List filter; Value is a string or a []string of
// accepted values.
type Parameter struct {
	Name  string
	Value interface{}
}

// NewParameter creates a filter accepting any of values.
func NewParameter(name string, values ...string) *Parameter {
	if len(values) == 1 {
		return &Parameter{Name: name, Value: values[0]}
	}
	return &Parameter{Name: name, Value: values}
}

// Accepts reports whether candidate is one of the parameter values.
func (p *Parameter) Accepts(candidate string) bool {
	switch actual := p.Value.(type) {
	case string:
		return actual == candidate
	case []string:
		for _, v := range actual {
			if v == candidate {
				return true
			}
		}
	}
	return false
}
