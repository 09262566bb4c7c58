package zerolog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/goterm/term"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
)

const (
	messageWidth = 72
	callerWidth  = 16
)

// Options configures the console logger
type Options struct {
	Level      string
	TimeLayout string
	Colored    bool
	JSON       bool
	Out        io.Writer
}

// New builds a zerolog logger writing either JSON or a fixed-width coloured console format
func New(opts Options) (*zerolog.Logger, error) {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack

	level, err := zerolog.ParseLevel(opts.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", opts.Level, err)
	}
	zerolog.SetGlobalLevel(level)

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	if opts.JSON {
		log := zerolog.New(out).With().Timestamp().Logger()
		return &log, nil
	}

	console := zerolog.ConsoleWriter{
		Out:             out,
		NoColor:         !opts.Colored,
		TimeFormat:      opts.TimeLayout,
		FormatLevel:     levelTag,
		FormatMessage:   padMessage,
		FormatCaller:    shortCaller,
		FormatTimestamp: func(i any) string { return localTime(i, opts.TimeLayout) },
	}

	log := zerolog.New(console).With().Timestamp().CallerWithSkipFrameCount(3).Logger()
	return &log, nil
}

func levelTag(i any) string {
	switch i {
	case zerolog.LevelTraceValue:
		return term.Cyanf("[TRC]")
	case zerolog.LevelDebugValue:
		return term.Cyanf("[DBG]")
	case zerolog.LevelInfoValue:
		return term.Greenf("[INF]")
	case zerolog.LevelWarnValue:
		return term.Yellowf("[WAR]")
	case zerolog.LevelErrorValue:
		return term.Redf("[ERR]")
	case zerolog.LevelFatalValue, zerolog.LevelPanicValue:
		return term.Redf("[FTL]")
	default:
		return term.Whitef("[UNK]")
	}
}

func padMessage(i any) string {
	msg, _ := i.(string)
	if msg == "" {
		return ">"
	}
	if len(msg) > messageWidth {
		msg = msg[:messageWidth]
	}
	return term.Whitef("> %-*s", messageWidth, msg)
}

func shortCaller(i any) string {
	name, _ := i.(string)
	if name == "" {
		return ""
	}

	file, line, found := strings.Cut(filepath.Base(name), ":")
	if !found {
		return term.Yellowf("[%s]", file)
	}
	if len(file) > callerWidth {
		file = file[:callerWidth]
	}

	return term.Yellowf("[%-*s:%4s]", callerWidth, file, line)
}

func localTime(i any, layout string) string {
	raw, ok := i.(string)
	if !ok {
		return term.Cyanf("[%v]", i)
	}

	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		raw = ts.In(time.Local).Format(layout)
	}

	return term.Cyanf("[%s]", raw)
}
