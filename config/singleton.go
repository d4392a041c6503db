package config

import (
	"sync"
)

var (
	_instanceMu sync.Mutex
	_instance   ConfigManager
)

// GetInstance returns the process-wide ConfigManager.
func GetInstance() ConfigManager {
	_instanceMu.Lock()
	defer _instanceMu.Unlock()
	if _instance == nil {
		_instance = NewConfigManager()
	}
	return _instance
}

// SetInstanceForTesting replaces the process-wide ConfigManager.
func SetInstanceForTesting(cm ConfigManager) {
	_instanceMu.Lock()
	defer _instanceMu.Unlock()
	_instance = cm
}

// ResetInstance closes and drops the process-wide ConfigManager.
func ResetInstance() {
	_instanceMu.Lock()
	defer _instanceMu.Unlock()
	if _instance != nil {
		_ = _instance.Close()
	}
	_instance = nil
}
