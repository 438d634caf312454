package logging

import (
	"fmt"
	"os"
	"sort"
	"sync"
)

// Компоненты сессии с отдельными логгерами
const (
	ComponentField     = "field"
	ComponentAuthority = "authority"
	ComponentRelay     = "relay"
	ComponentStorage   = "storage"
)

// LoggerManager выдаёт логгеры компонентов и держит общий порог вывода
type LoggerManager struct {
	mu      sync.RWMutex
	loggers map[string]*Logger
	console LogLevel
	file    LogLevel
}

var (
	globalManager *LoggerManager
	managerOnce   sync.Once
)

func newLoggerManager() *LoggerManager {
	return &LoggerManager{
		loggers: make(map[string]*Logger),
		console: INFO,
		file:    TRACE,
	}
}

// GetLoggerManager возвращает глобальный менеджер логгеров
func GetLoggerManager() *LoggerManager {
	managerOnce.Do(func() { globalManager = newLoggerManager() })
	return globalManager
}

// GetLogger возвращает логгер компонента, создавая его с текущими порогами.
// До InitDefaultLogger логгеры пишут только в stdout.
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

	if fileOutput {
		var err error
		if logger, err = NewLogger(component); err != nil {
			return nil, fmt.Errorf("logger %s: %w", component, err)
		}
	} else {
		logger = NewWriterLogger(component, os.Stdout, lm.console)
	}
	logger.SetLevels(lm.console, lm.file)
	lm.loggers[component] = logger
	return logger, nil
}

// MustGetLogger как GetLogger, но при ошибке файла откатывается на консоль
func (lm *LoggerManager) MustGetLogger(component string) *Logger {
	logger, err := lm.GetLogger(component)
	if err == nil {
		return logger
	}

	lm.mu.Lock()
	defer lm.mu.Unlock()
	if existing, ok := lm.loggers[component]; ok {
		return existing
	}
	logger = &Logger{
		component:       component,
		consoleLogger:   defaultLogger.consoleLogger,
		minConsoleLevel: lm.console,
		minFileLevel:    ERROR + 1,
	}
	lm.loggers[component] = logger
	return logger
}

// SetLevelAll меняет пороги у всех нынешних и будущих логгеров компонентов
func (lm *LoggerManager) SetLevelAll(consoleLevel, fileLevel LogLevel) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	lm.console = consoleLevel
	lm.file = fileLevel
	for _, logger := range lm.loggers {
		logger.SetLevels(consoleLevel, fileLevel)
	}
}

// SetLogLevel меняет пороги одного компонента
func (lm *LoggerManager) SetLogLevel(component string, consoleLevel, fileLevel LogLevel) error {
	lm.mu.RLock()
	logger, ok := lm.loggers[component]
	lm.mu.RUnlock()
	if !ok {
		return fmt.Errorf("logger for component %s not found", component)
	}
	logger.SetLevels(consoleLevel, fileLevel)
	return nil
}

// ListComponents имена компонентов с созданными логгерами, по алфавиту
func (lm *LoggerManager) ListComponents() []string {
	lm.mu.RLock()
	defer lm.mu.RUnlock()
	names := make([]string, 0, len(lm.loggers))
	for name := range lm.loggers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CloseAll закрывает файлы всех логгеров и забывает их
func (lm *LoggerManager) CloseAll() error {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	var lastErr error
	for name, logger := range lm.loggers {
		if err := logger.Close(); err != nil {
			lastErr = fmt.Errorf("close logger %s: %w", name, err)
		}
	}
	lm.loggers = make(map[string]*Logger)
	return lastErr
}

func GetComponentLogger(component string) *Logger {
	return GetLoggerManager().MustGetLogger(component)
}

func GetFieldLogger() *Logger     { return GetComponentLogger(ComponentField) }
func GetAuthorityLogger() *Logger { return GetComponentLogger(ComponentAuthority) }
func GetRelayLogger() *Logger     { return GetComponentLogger(ComponentRelay) }
func GetStorageLogger() *Logger   { return GetComponentLogger(ComponentStorage) }
