package obs

import (
	"encoding/json"
	"log"
	"os"
	"sync"
)

// serviceName is stamped on every log line so aggregated streams stay
// attributable when several services share a collector.
const serviceName = "schoolcore-api"

var (
	loggerOnce sync.Once
	logger     *log.Logger
)

// Logger returns the shared line logger. Output goes to stdout with no
// prefix; every line is a self-contained JSON document.
func Logger() *log.Logger {
	loggerOnce.Do(func() {
		logger = log.New(os.Stdout, "", 0)
	})
	return logger
}

// LogRequest emits one structured JSON log line, stamping the service name
// unless the caller already set one.
func LogRequest(entry map[string]any) {
	if entry == nil {
		entry = map[string]any{}
	}
	if _, ok := entry["service"]; !ok {
		entry["service"] = serviceName
	}
	data, err := json.Marshal(entry)
	if err != nil {
		Logger().Println(`{"ts":"error","level":"error","msg":"log marshal failed"}`)
		return
	}
	Logger().Println(string(data))
}
