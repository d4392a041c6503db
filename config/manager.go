package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// reloadDebounce coalesces the burst of events a single editor save produces.
const reloadDebounce = 100 * time.Millisecond

// ConfigManager loads configuration sections and keeps them current.
type ConfigManager interface {
	// LoadConfig reads <configName>.yaml into config and watches the file.
	// Fields absent from the file keep the values config already holds.
	LoadConfig(configName string, config Config) error
	GetConfig(configName string) (Config, error)
	SetBasePath(path string)
	SetEnvironment(env string)
	AddChangeListener(listener ConfigChangeListener)
	RemoveChangeListener(listener ConfigChangeListener)
	NotifyConfigChanged(configName string, newConfig, oldConfig Config)
	Close() error
}

// IsNotFound reports whether err means the section file does not exist.
func IsNotFound(err error) bool {
	var nf viper.ConfigFileNotFoundError
	return errors.As(err, &nf)
}

type configManager struct {
	mu        sync.RWMutex
	configs   map[string]Config
	watchers  map[string]*fsnotify.Watcher
	listeners []ConfigChangeListener
	basePath  string
	env       string
}

// NewConfigManager creates a manager reading from ./configs.
func NewConfigManager() ConfigManager {
	return &configManager{
		configs:  make(map[string]Config),
		watchers: make(map[string]*fsnotify.Watcher),
		basePath: "./configs",
		env:      "development",
	}
}

func (cm *configManager) newViper(configName string) *viper.Viper {
	v := viper.New()
	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	v.AddConfigPath(fmt.Sprintf("%s/%s", cm.basePath, cm.env))
	v.AddConfigPath(cm.basePath)

	// HEARTH_SERVER_IDLETIMEOUT=10s overrides idleTimeout in server.yaml
	v.SetEnvPrefix("HEARTH_" + strings.ToUpper(configName))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decodeHook() viper.DecoderConfigOption {
	return viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		mapstructure.TextUnmarshallerHookFunc(),
	))
}

// freshCollections makes decoded slices and maps replace, never patch, the
// values already present in the target.
func freshCollections(c *mapstructure.DecoderConfig) {
	c.ZeroFields = true
}

func decode(v *viper.Viper, config Config) error {
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config failed: %w", err)
	}
	if err := v.Unmarshal(config, decodeHook(), freshCollections); err != nil {
		return fmt.Errorf("unmarshal config failed: %w", err)
	}
	if err := config.Validate(); err != nil {
		return fmt.Errorf("validate config failed: %w", err)
	}
	return nil
}

// LoadConfig implements ConfigManager.
func (cm *configManager) LoadConfig(configName string, config Config) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	v := cm.newViper(configName)
	if err := decode(v, config); err != nil {
		return err
	}
	cm.configs[configName] = config

	if _, watching := cm.watchers[configName]; watching {
		return nil
	}
	if err := cm.watchConfigFile(configName, v.ConfigFileUsed()); err != nil {
		return fmt.Errorf("watch config file failed: %w", err)
	}
	return nil
}

// GetConfig implements ConfigManager.
func (cm *configManager) GetConfig(configName string) (Config, error) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	config, exists := cm.configs[configName]
	if !exists {
		return nil, fmt.Errorf("config %s not found", configName)
	}
	return config, nil
}

// SetBasePath sets base path for configuration files
func (cm *configManager) SetBasePath(path string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.basePath = path
}

// SetEnvironment selects the <basePath>/<env> override directory.
func (cm *configManager) SetEnvironment(env string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.env = env
}

// AddChangeListener implements ConfigManager.
func (cm *configManager) AddChangeListener(listener ConfigChangeListener) {
	if listener == nil {
		return
	}
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.listeners = append(cm.listeners, listener)
}

// RemoveChangeListener implements ConfigManager.
func (cm *configManager) RemoveChangeListener(listener ConfigChangeListener) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	for i, l := range cm.listeners {
		if l == listener {
			cm.listeners = append(cm.listeners[:i], cm.listeners[i+1:]...)
			return
		}
	}
}

// NotifyConfigChanged calls every listener outside the manager lock, so
// listeners may call back into the manager.
func (cm *configManager) NotifyConfigChanged(configName string, newConfig, oldConfig Config) {
	cm.mu.RLock()
	listeners := make([]ConfigChangeListener, len(cm.listeners))
	copy(listeners, cm.listeners)
	cm.mu.RUnlock()

	for _, l := range listeners {
		if err := l.OnConfigChanged(configName, newConfig, oldConfig); err != nil {
			fmt.Fprintf(os.Stderr, "config: listener rejected %s: %v\n", configName, err)
		}
	}
}

func (cm *configManager) watchConfigFile(configName, configFile string) error {
	if configFile == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(configFile); err != nil {
		_ = watcher.Close()
		return err
	}
	cm.watchers[configName] = watcher

	go func() {
		var debounce *time.Timer
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					if debounce != nil {
						debounce.Stop()
					}
					return
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				if debounce == nil {
					debounce = time.AfterFunc(reloadDebounce, func() { cm.reloadConfig(configName) })
				} else {
					debounce.Reset(reloadDebounce)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				fmt.Fprintf(os.Stderr, "config: watcher error: %v\n", err)
			}
		}
	}()
	return nil
}

// reloadConfig keeps the old section on any read, decode or validation error.
func (cm *configManager) reloadConfig(configName string) {
	cm.mu.Lock()
	oldConfig, exists := cm.configs[configName]
	if !exists {
		cm.mu.Unlock()
		return
	}

	// 以旧值为底, 文件里缺省的字段保持不变
	elem := reflect.TypeOf(oldConfig).Elem()
	ptr := reflect.New(elem)
	ptr.Elem().Set(reflect.ValueOf(oldConfig).Elem())
	newConfig := ptr.Interface().(Config)

	if err := decode(cm.newViper(configName), newConfig); err != nil {
		cm.mu.Unlock()
		fmt.Fprintf(os.Stderr, "config: reload %s: %v\n", configName, err)
		return
	}
	cm.configs[configName] = newConfig
	cm.mu.Unlock()

	cm.NotifyConfigChanged(configName, newConfig, oldConfig)
}

// Close stops every file watcher.
func (cm *configManager) Close() error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	var errs []error
	for name, watcher := range cm.watchers {
		if err := watcher.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(cm.watchers, name)
	}
	return errors.Join(errs...)
}
