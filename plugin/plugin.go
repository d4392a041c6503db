// Package plugin is a registry of named factories that build components
// from configuration maps.
package plugin

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/go-viper/mapstructure/v2"
	"github.com/lcx/hearth/log"
)

// Type is the category a factory belongs to.
type Type string

// Plugin represents the plugin instance interface.
type Plugin interface { //nolint:revive
	FactoryName() string
}

var _pluginLock sync.RWMutex

func factoryKey(t Type, name string) string {
	return fmt.Sprintf("%s_%s", t, name)
}

// RegisterPlugin registers a factory. A later registration with the same
// type and name replaces the earlier one.
func RegisterPlugin(f Factory) {
	_pluginLock.Lock()
	defer _pluginLock.Unlock()
	_factoryMap[factoryKey(f.Type(), f.Name())] = f
}

// GetFactory looks up a registered factory.
func GetFactory(t Type, name string) (Factory, error) {
	_pluginLock.RLock()
	defer _pluginLock.RUnlock()
	f, ok := _factoryMap[factoryKey(t, name)]
	if !ok {
		return nil, fmt.Errorf("plugin factory [%s/%s] not found, available factories: %v",
			t, name, listFactoriesLocked(t))
	}
	return f, nil
}

// Setup builds one instance with the factory registered under t and name.
func Setup(t Type, name string, v map[string]any) (Plugin, error) {
	f, err := GetFactory(t, name)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("type", string(t)).Str("name", name).Msg("plugin setup begin")
	ins, err := f.Setup(v)
	if err != nil {
		return nil, fmt.Errorf("plugin [%s/%s] setup failed: %w", t, name, err)
	}
	log.Info().Str("type", string(t)).Str("name", name).Msg("plugin setup success")
	return ins, nil
}

// Destroy releases an instance through the factory that built it.
func Destroy(t Type, ins Plugin) error {
	f, err := GetFactory(t, ins.FactoryName())
	if err != nil {
		return err
	}
	return f.Destroy(ins)
}

// ListFactories returns the sorted factory names registered for t.
func ListFactories(t Type) []string {
	_pluginLock.RLock()
	defer _pluginLock.RUnlock()
	return listFactoriesLocked(t)
}

func listFactoriesLocked(t Type) []string {
	prefix := string(t) + "_"
	var names []string
	for key := range _factoryMap {
		if strings.HasPrefix(key, prefix) {
			names = append(names, strings.TrimPrefix(key, prefix))
		}
	}
	sort.Strings(names)
	return names
}

// DecodeConfig decodes a factory config map into out. Duration strings
// such as "5s" are accepted.
func DecodeConfig(v map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(v)
}
