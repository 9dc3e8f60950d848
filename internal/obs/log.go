package obs

import (
	"encoding/json"
	"log"
	"os"
	"sync"
	"time"
)

var (
	loggerOnce sync.Once
	logger     *log.Logger
)

// Logger returns the shared structured logger used across the console.
func Logger() *log.Logger {
	loggerOnce.Do(func() {
		logger = log.New(os.Stderr, "", 0)
	})
	return logger
}

// Log emits a structured JSON log line.
func Log(level, msg string, fields map[string]any) {
	entry := make(map[string]any, len(fields)+3)
	for k, v := range fields {
		entry[k] = v
	}
	entry["ts"] = time.Now().UTC().Format(time.RFC3339Nano)
	entry["level"] = level
	entry["msg"] = msg
	data, err := json.Marshal(entry)
	if err != nil {
		Logger().Println(`{"level":"error","msg":"log marshal failed"}`)
		return
	}
	Logger().Println(string(data))
}

func Info(msg string, fields map[string]any)  { Log("info", msg, fields) }
func Warn(msg string, fields map[string]any)  { Log("warn", msg, fields) }
func Error(msg string, fields map[string]any) { Log("error", msg, fields) }
