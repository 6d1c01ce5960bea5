package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/charlesng35/kiddies/pkg/logger"
)

func TestConfigureLogging(t *testing.T) {
	require.NoError(t, ConfigureLogging(ServerConfig{LogLevel: " warn "}))
	require.False(t, logger.Logger().Core().Enabled(zapcore.InfoLevel))

	require.NoError(t, ConfigureLogging(ServerConfig{}))
	require.True(t, logger.Logger().Core().Enabled(zapcore.InfoLevel))
	require.False(t, logger.Logger().Core().Enabled(zapcore.DebugLevel))
}

func TestConfigureLoggingReportsBadLogFile(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	require.Error(t, ConfigureLogging(ServerConfig{LogFile: filepath.Join(blocker, "kiddies.log")}))
}
