package logger

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestGetReturnsUsableLogger(t *testing.T) {
	l := Get()
	if l == nil {
		t.Fatal("Get returned nil")
	}

	// Level methods on zerolog.Logger have pointer receivers; these must
	// compile and run against the returned value.
	Get().Info().Msg("info message")
	Get().Debug().Msg("debug message")
	Get().Warn().Msg("warn message")
}

func TestHelpers(t *testing.T) {
	Info("plain")
	Infof("formatted %d", 1)
	Warnf("warning %s", "x")
	Debugf("debug %v", true)
	Errorf(nil, "error %s", "y")
}

func TestSetVerbose(t *testing.T) {
	Init()
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	SetVerbose(false)
	if zerolog.GlobalLevel() != zerolog.InfoLevel {
		t.Errorf("SetVerbose(false) should leave level at info, got %v", zerolog.GlobalLevel())
	}

	SetVerbose(true)
	if zerolog.GlobalLevel() != zerolog.DebugLevel {
		t.Errorf("SetVerbose(true) should lower level to debug, got %v", zerolog.GlobalLevel())
	}
}
