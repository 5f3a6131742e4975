// Package logging writes single-line JSON logs and provides a gin request logger.
package logging

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// Fields are the structured key/value pairs of one log line.
type Fields map[string]interface{}

var (
	mu     sync.Mutex
	logger = log.New(os.Stdout, "", 0)
	quiet  bool
)

// SetOutput redirects log lines. The CLI points this at stderr so command output stays clean.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	logger.SetOutput(w)
}

// SetQuiet drops info lines; warnings and errors are still written.
func SetQuiet(q bool) {
	mu.Lock()
	defer mu.Unlock()
	quiet = q
}

// LogKV logs a structured JSON line with a level, message, and arbitrary fields.
func LogKV(level, msg string, fields Fields) {
	mu.Lock()
	defer mu.Unlock()
	if quiet && level == "info" {
		return
	}

	entry := map[string]interface{}{
		"level": level,
		"ts":    time.Now().UTC().Format(time.RFC3339Nano),
		"msg":   msg,
	}
	for k, v := range fields {
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		entry[k] = v
	}
	b, _ := json.Marshal(entry)
	logger.Println(string(b))
}

// Info logs at info level.
func Info(msg string, fields Fields) { LogKV("info", msg, fields) }

// Warn logs at warn level.
func Warn(msg string, fields Fields) { LogKV("warn", msg, fields) }

// Error logs at error level.
func Error(msg string, fields Fields) { LogKV("error", msg, fields) }

// JSONLogger returns a Gin middleware that logs requests as single-line JSON.
func JSONLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		level := "info"
		switch {
		case status >= http.StatusInternalServerError || len(c.Errors) > 0:
			level = "error"
		case status >= http.StatusBadRequest:
			level = "warn"
		}

		fields := Fields{
			"method":     c.Request.Method,
			"path":       path,
			"query":      query,
			"status":     status,
			"latency_ms": float64(latency.Microseconds()) / 1000.0,
			"client_ip":  c.ClientIP(),
			"bytes_out":  c.Writer.Size(),
		}
		if actor, ok := c.Get("actor_id"); ok {
			fields["actor"] = actor
		}
		if len(c.Errors) > 0 {
			fields["error"] = c.Errors.String()
		}

		LogKV(level, "request", fields)
	}
}
