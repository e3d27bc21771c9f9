package driven

// ConfigStore holds flat settings under dotted keys such as "sync.prune".
// Typed getters return the zero value when a key is missing or holds
// another type. Numeric getters accept any stored integer or float.
type ConfigStore interface {
	Get(key string) (any, bool)
	GetString(key string) string
	GetInt(key string) int
	GetFloat(key string) float64
	GetBool(key string) bool

	// Set stores value under key and writes the store through.
	Set(key string, value any) error

	// Save writes every value. Load replaces the values with what is saved.
	Save() error
	Load() error

	// Path locates the backing file, or names the store when there is none.
	Path() string
}
