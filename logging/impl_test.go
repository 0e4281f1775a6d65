package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.viam.com/test"
)

func TestSubloggerName(t *testing.T) {
	logger, logs := NewObservedTestLogger(t)
	sub := logger.Sublogger("depth").Sublogger("points")
	sub.Infow("published", "topic", "points2")

	test.That(t, logs.Len(), test.ShouldEqual, 1)
	entry := logs.All()[0]
	test.That(t, entry.LoggerName, test.ShouldEqual, "depth.points")
	test.That(t, entry.Message, test.ShouldEqual, "published")
	test.That(t, entry.ContextMap()["topic"], test.ShouldEqual, "points2")
}

func TestSetLevel(t *testing.T) {
	logger, logs := NewObservedTestLogger(t)
	logger.SetLevel(WARN)
	test.That(t, logger.GetLevel(), test.ShouldEqual, WARN)

	logger.Debug("dropped")
	logger.Info("dropped")
	logger.Warn("kept")
	logger.Errorf("kept %d", 2)
	test.That(t, logs.Len(), test.ShouldEqual, 2)

	// sublogger levels are independent once created
	sub := logger.Sublogger("sub")
	sub.SetLevel(DEBUG)
	sub.Debug("kept")
	logger.Debug("dropped")
	test.That(t, logs.Len(), test.ShouldEqual, 3)
}

func TestLevelFromString(t *testing.T) {
	for input, expected := range map[string]Level{
		"debug":   DEBUG,
		"INFO":    INFO,
		"Warning": WARN,
		"error":   ERROR,
	} {
		level, err := LevelFromString(input)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, level, test.ShouldEqual, expected)
	}
	_, err := LevelFromString("verbose")
	test.That(t, err, test.ShouldNotBeNil)

	var level Level
	test.That(t, level.UnmarshalJSON([]byte(`"warn"`)), test.ShouldBeNil)
	test.That(t, level, test.ShouldEqual, WARN)
	out, err := ERROR.MarshalJSON()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(out), test.ShouldEqual, `"error"`)
}

func TestFileAppender(t *testing.T) {
	path := filepath.Join(t.TempDir(), "depthcam.log")
	logger, closer := NewLoggerWithFile("file", INFO, path)
	logger.Debug("dropped")
	logger.Infow("streams started", "serial", "000000000001")
	test.That(t, closer.Close(), test.ShouldBeNil)

	//nolint:gosec
	raw, err := os.ReadFile(path)
	test.That(t, err, test.ShouldBeNil)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	test.That(t, len(lines), test.ShouldEqual, 1)
	test.That(t, lines[0], test.ShouldContainSubstring, "INFO")
	test.That(t, lines[0], test.ShouldContainSubstring, "file")
	test.That(t, lines[0], test.ShouldContainSubstring, "streams started")
	test.That(t, lines[0], test.ShouldContainSubstring, `"000000000001"`)
}
