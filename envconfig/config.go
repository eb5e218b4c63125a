package envconfig

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
)

// Var returns an environment variable stripped of surrounding space and
// quotes.
func Var(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'")
}

func StringWithDefault(key string, defaultValue string) func() string {
	return func() string {
		if s := Var(key); s != "" {
			return s
		}
		return defaultValue
	}
}

func Uint(key string, defaultValue uint) func() uint {
	return func() uint {
		if s := Var(key); s != "" {
			if n, err := strconv.ParseUint(s, 10, 64); err != nil {
				slog.Warn("invalid environment variable, using default",
					"key", key, "value", s, "default", defaultValue)
			} else {
				return uint(n)
			}
		}
		return defaultValue
	}
}

var (
	// Vocab is the vocabulary file.
	Vocab = StringWithDefault("GPT2_VOCAB", "vocab.json")
	// Merges is the merge rules file.
	Merges = StringWithDefault("GPT2_MERGES", "merges.txt")
	// Specials is an optional special tokens file.
	Specials = StringWithDefault("GPT2_SPECIALS", "")
	// Model is the ONNX model graph.
	Model = StringWithDefault("GPT2_MODEL", "gpt2-lm-head-10.onnx")
	// OrtLibrary is the ONNX Runtime shared library. Empty uses the
	// platform default.
	OrtLibrary = StringWithDefault("GPT2_ORT_LIBRARY", "")
	// NumParallel caps concurrent generations in the server.
	NumParallel = Uint("GPT2_NUM_PARALLEL", 1)
)

// Host returns the server listen address from GPT2_HOST, default
// 127.0.0.1:8089. A bare host gets the default port.
func Host() string {
	const defaultHost, defaultPort = "127.0.0.1", "8089"
	s := Var("GPT2_HOST")
	if s == "" {
		return net.JoinHostPort(defaultHost, defaultPort)
	}
	host, port, err := net.SplitHostPort(s)
	if err != nil {
		host, port = strings.Trim(s, "[]"), defaultPort
	}
	if n, err := strconv.ParseUint(port, 10, 16); err != nil || n == 0 {
		slog.Warn("invalid port, using default", "port", port,
			"default", defaultPort)
		port = defaultPort
	}
	if host == "" {
		host = defaultHost
	}
	return net.JoinHostPort(host, port)
}

// LogLevel reads GPT2_DEBUG. A true value enables debug logging; an
// integer lowers the level by that many steps.
func LogLevel() slog.Level {
	level := slog.LevelInfo
	if s := Var("GPT2_DEBUG"); s != "" {
		if b, _ := strconv.ParseBool(s); b {
			level = slog.LevelDebug
		} else if i, _ := strconv.ParseInt(s, 10, 64); i != 0 {
			level = slog.Level(i * -4)
		}
	}
	return level
}

type EnvVar struct {
	Name        string
	Value       any
	Description string
}

func AsMap() map[string]EnvVar {
	return map[string]EnvVar{
		"GPT2_VOCAB":        {"GPT2_VOCAB", Vocab(), "Vocabulary file (JSON or `symbol id` lines)"},
		"GPT2_MERGES":       {"GPT2_MERGES", Merges(), "Merge rules file"},
		"GPT2_SPECIALS":     {"GPT2_SPECIALS", Specials(), "Special tokens file, one per line"},
		"GPT2_MODEL":        {"GPT2_MODEL", Model(), "ONNX model graph"},
		"GPT2_ORT_LIBRARY":  {"GPT2_ORT_LIBRARY", OrtLibrary(), "ONNX Runtime shared library"},
		"GPT2_HOST":         {"GPT2_HOST", Host(), "Server listen address"},
		"GPT2_NUM_PARALLEL": {"GPT2_NUM_PARALLEL", NumParallel(), "Maximum concurrent generations"},
		"GPT2_DEBUG":        {"GPT2_DEBUG", LogLevel(), "Show additional debug information"},
	}
}

func Values() map[string]string {
	vals := make(map[string]string)
	for k, v := range AsMap() {
		vals[k] = fmt.Sprintf("%v", v.Value)
	}
	return vals
}
