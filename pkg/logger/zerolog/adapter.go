package zerolog

import (
	"fmt"

	"github.com/raykavin/meanmomentum/pkg/logger"
	"github.com/rs/zerolog"
)

var _ logger.Logger = (*Adapter)(nil)

// Adapter exposes a zerolog logger through logger.Logger
type Adapter struct {
	*zerolog.Logger
}

func NewAdapter(log *zerolog.Logger) *Adapter {
	return &Adapter{log}
}

// Nop returns an adapter that discards everything, handy for tests
func Nop() *Adapter {
	log := zerolog.Nop()
	return &Adapter{&log}
}

func (z *Adapter) GetLevel() logger.Level {
	return toLevel(z.Logger.GetLevel())
}

func (z *Adapter) SetLevel(level logger.Level) {
	zerolog.SetGlobalLevel(toZerologLevel(level))
}

func (z *Adapter) Debug(args ...any) { z.Logger.Debug().Msg(fmt.Sprint(args...)) }
func (z *Adapter) Info(args ...any)  { z.Logger.Info().Msg(fmt.Sprint(args...)) }
func (z *Adapter) Warn(args ...any)  { z.Logger.Warn().Msg(fmt.Sprint(args...)) }
func (z *Adapter) Error(args ...any) { z.Logger.Error().Msg(fmt.Sprint(args...)) }
func (z *Adapter) Fatal(args ...any) { z.Logger.Fatal().Msg(fmt.Sprint(args...)) }

func (z *Adapter) Debugf(format string, args ...any) { z.Logger.Debug().Msgf(format, args...) }
func (z *Adapter) Infof(format string, args ...any)  { z.Logger.Info().Msgf(format, args...) }
func (z *Adapter) Warnf(format string, args ...any)  { z.Logger.Warn().Msgf(format, args...) }
func (z *Adapter) Errorf(format string, args ...any) { z.Logger.Error().Msgf(format, args...) }
func (z *Adapter) Fatalf(format string, args ...any) { z.Logger.Fatal().Msgf(format, args...) }

func (z *Adapter) WithError(err error) logger.Logger {
	child := z.With().Err(err).Logger()
	return &Adapter{&child}
}

func (z *Adapter) WithField(key string, value any) logger.Logger {
	child := z.With().Interface(key, value).Logger()
	return &Adapter{&child}
}

func (z *Adapter) WithFields(fields map[string]any) logger.Logger {
	child := z.With().Fields(fields).Logger()
	return &Adapter{&child}
}

func toLevel(level zerolog.Level) logger.Level {
	switch level {
	case zerolog.TraceLevel:
		return logger.TraceLevel
	case zerolog.DebugLevel:
		return logger.DebugLevel
	case zerolog.WarnLevel:
		return logger.WarnLevel
	case zerolog.ErrorLevel:
		return logger.ErrorLevel
	case zerolog.FatalLevel, zerolog.PanicLevel:
		return logger.FatalLevel
	case zerolog.Disabled:
		return logger.Disabled
	default:
		return logger.InfoLevel
	}
}

func toZerologLevel(level logger.Level) zerolog.Level {
	switch level {
	case logger.TraceLevel:
		return zerolog.TraceLevel
	case logger.DebugLevel:
		return zerolog.DebugLevel
	case logger.WarnLevel:
		return zerolog.WarnLevel
	case logger.ErrorLevel:
		return zerolog.ErrorLevel
	case logger.FatalLevel:
		return zerolog.FatalLevel
	case logger.Disabled:
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}
