package plugin

// Factory creates plugin instances of one kind from a configuration map.
//
// Lifecycle methods:
//   - Setup: build an instance from its config map
//   - Destroy: release the instance's resources
//
// Factories are registered from init functions and must be safe for
// concurrent Setup calls.
type Factory interface {
	// Type returns the plugin type (e.g. "provider")
	Type() Type

	// Name returns the factory name (e.g. "tcp", "websocket")
	Name() string

	Setup(v map[string]any) (Plugin, error)

	Destroy(Plugin) error
}

var (
	// _factoryMap key format: "<plugin_type>_<factory_name>"
	_factoryMap = make(map[string]Factory)
)
