// internal/utils/logger/config.go
package logger

import "io"

type Config struct {
	LogFile     string // пустая строка отключает запись в файл
	MaxSize     int    // мегабайты
	MaxAge      int    // дни
	MaxBackups  int    // количество файлов
	Compress    bool   // сжимать ротированные файлы
	Development bool

	// Console заменяет stdout; NoConsole отключает консольный вывод (нужно для TUI)
	Console   io.Writer
	NoConsole bool
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() *Config {
	return &Config{
		LogFile:     "logs/vprice.log",
		MaxSize:     100, // 100 MB
		MaxAge:      7,   // 7 дней
		MaxBackups:  3,   // 3 файла
		Compress:    true,
		Development: false,
	}
}
