package provider

// Kind is the API shape a provider implements.
type Kind int

const (
	Static Kind = iota
	Dynamic
	Hybrid
)

func (k Kind) String() string {
	switch k {
	case Dynamic:
		return "dynamic"
	case Hybrid:
		return "hybrid"
	default:
		return "static"
	}
}
