package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	logger *logrus.Logger
	once   sync.Once
)

// InitLogger 初始化日志记录器
// 若logDir非空，日志同时写入 <logDir>/simulation.log
func InitLogger(logDir string, verbose bool) error {
	var initErr error
	once.Do(func() {
		logger = logrus.New()
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
		if verbose {
			logger.SetLevel(logrus.DebugLevel)
		} else {
			logger.SetLevel(logrus.InfoLevel)
		}

		if logDir != "" {
			if err := os.MkdirAll(logDir, 0755); err != nil {
				initErr = err
				return
			}
			file, err := os.Create(filepath.Join(logDir, "simulation.log"))
			if err != nil {
				initErr = err
				return
			}
			logger.SetOutput(io.MultiWriter(os.Stdout, file))
		}
	})
	return initErr
}

// get 返回全局日志记录器，未初始化时使用默认配置
func get() *logrus.Logger {
	if logger == nil {
		_ = InitLogger("", false)
	}
	return logger
}

// WriteLog 记录一条普通日志
func WriteLog(msg string) {
	get().Info(msg)
}

// Debugf 记录调试日志
func Debugf(format string, args ...interface{}) {
	get().Debugf(format, args...)
}

// Infof 记录普通日志
func Infof(format string, args ...interface{}) {
	get().Infof(format, args...)
}

// Warnf 记录警告日志
func Warnf(format string, args ...interface{}) {
	get().Warnf(format, args...)
}

// Errorf 记录错误日志
func Errorf(format string, args ...interface{}) {
	get().Errorf(format, args...)
}

// WithFields 返回带结构化字段的日志入口
func WithFields(fields map[string]interface{}) *logrus.Entry {
	return get().WithFields(logrus.Fields(fields))
}

// ConvertTickToTime 将模拟时刻换算为 时:分:秒 字符串
func ConvertTickToTime(tick int, unitTime float64) string {
	seconds := int(float64(tick) * unitTime)
	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, (seconds%3600)/60, seconds%60)
}
