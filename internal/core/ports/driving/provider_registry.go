package driving

// ProviderRegistry answers kind-level questions about a set of providers
// without exposing the providers themselves.
type ProviderRegistry interface {
	// Kinds lists the registered kinds so that every kind follows the
	// kinds it depends on.
	Kinds() ([]string, error)

	// Dependencies maps each dependency name of kind to its target kind.
	Dependencies(kind string) (map[string]string, error)
}
