package meanmomentum

import (
	"os"
	"strconv"

	"github.com/raykavin/meanmomentum/pkg/logger"
	"github.com/raykavin/meanmomentum/pkg/logger/zerolog"
)

// DefaultLog is the logger used when none is given
var DefaultLog logger.Logger

const (
	defaultLogLevel      = "info"
	defaultLogTimeFormat = "2006-01-02 15:04:05"
	defaultLogColored    = "true"
	defaultLogJSON       = "false"
)

const (
	envLogLevel      = "MEANMOMENTUM_LOG_LEVEL"
	envLogTimeFormat = "MEANMOMENTUM_LOG_TIME_FORMAT"
	envLogColor      = "MEANMOMENTUM_LOG_COLOR"
	envLogJSON       = "MEANMOMENTUM_LOG_JSON"
)

func init() {
	options, err := logOptions()
	if err != nil {
		panic(err)
	}

	log, err := zerolog.New(options)
	if err != nil {
		panic(err)
	}
	DefaultLog = zerolog.NewAdapter(log)
}

// logOptions reads the logger configuration from the environment
func logOptions() (zerolog.Options, error) {
	colored, err := parseBoolEnv(envLogColor, defaultLogColored)
	if err != nil {
		return zerolog.Options{}, err
	}

	json, err := parseBoolEnv(envLogJSON, defaultLogJSON)
	if err != nil {
		return zerolog.Options{}, err
	}

	return zerolog.Options{
		Level:      getEnvWithDefault(envLogLevel, defaultLogLevel),
		TimeLayout: getEnvWithDefault(envLogTimeFormat, defaultLogTimeFormat),
		Colored:    colored,
		JSON:       json,
	}, nil
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key, defaultValue string) (bool, error) {
	return strconv.ParseBool(getEnvWithDefault(key, defaultValue))
}
