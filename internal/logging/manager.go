package logging

import (
	"errors"
	"fmt"
	"sync"
)

// LoggerManager держит по одному логгеру на компонент (api, search, cache...)
type LoggerManager struct {
	mu      sync.RWMutex
	loggers map[string]*Logger
}

var (
	components     *LoggerManager
	componentsOnce sync.Once
)

func componentLoggers() *LoggerManager {
	componentsOnce.Do(func() {
		components = &LoggerManager{loggers: make(map[string]*Logger)}
	})
	return components
}

// GetLogger отдаёт логгер компонента, создавая его при первом обращении
func (lm *LoggerManager) GetLogger(component string) (*Logger, error) {
	lm.mu.RLock()
	logger, ok := lm.loggers[component]
	lm.mu.RUnlock()
	if ok {
		return logger, nil
	}

	lm.mu.Lock()
	defer lm.mu.Unlock()
	if logger, ok := lm.loggers[component]; ok {
		return logger, nil
	}

	logger, err := NewLogger(component)
	if err != nil {
		return nil, fmt.Errorf("логгер %s: %w", component, err)
	}
	lm.loggers[component] = logger
	return logger, nil
}

// MustGetLogger как GetLogger, но при ошибке файла пишет только в консоль
func (lm *LoggerManager) MustGetLogger(component string) *Logger {
	logger, err := lm.GetLogger(component)
	if err != nil {
		getDefault().Warn("⚠️ Логгер %s работает только в консоль: %v", component, err)
		return newConsoleLogger(component, getDefault().consoleLogger.Writer())
	}
	return logger
}

// CloseAll закрывает файлы всех компонентов и забывает их логгеры
func (lm *LoggerManager) CloseAll() error {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	var errs []error
	for name, logger := range lm.loggers {
		if err := logger.Close(); err != nil {
			errs = append(errs, fmt.Errorf("логгер %s: %w", name, err))
		}
	}
	lm.loggers = make(map[string]*Logger)
	return errors.Join(errs...)
}

// CloseComponentLoggers закрывает логгеры компонентов при остановке сервера
func CloseComponentLoggers() error {
	return componentLoggers().CloseAll()
}

func GetComponentLogger(component string) *Logger {
	return componentLoggers().MustGetLogger(component)
}

func GetAPILogger() *Logger      { return GetComponentLogger("api") }
func GetSearchLogger() *Logger   { return GetComponentLogger("search") }
func GetEventBusLogger() *Logger { return GetComponentLogger("eventbus") }
