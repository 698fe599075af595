package store

// ParamSpec describes one slot in an intent's parameter schema.
type ParamSpec struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
}

// ParameterSchema is the ordered parameter list for one intent.
type ParameterSchema []ParamSpec

// Names returns the schema's parameter names in declaration order.
func (s ParameterSchema) Names() []string {
	names := make([]string, len(s))
	for i, p := range s {
		names[i] = p.Name
	}
	return names
}

// RequiredNames returns the names of required parameters.
func (s ParameterSchema) RequiredNames() []string {
	var names []string
	for _, p := range s {
		if p.Required {
			names = append(names, p.Name)
		}
	}
	return names
}

// Session-context field names shared by the parser and the disambiguator.
const (
	ContextLastIntent   = "lastIntent"
	ContextLastTerminal = "lastTerminal"
	ContextLastStand    = "lastStand"
	ContextLastQueryID  = "lastQueryId"
)
