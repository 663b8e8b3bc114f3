// Package main is the entry point for the event analysis engine. It
// provides a REST API, websocket stream, and MCP surface for ingesting
// SystemEvents and raising AlarmMessages when configured rules trigger.
package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alecthomas/kong"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ruaan-deysel/eventwatch/daemon/cmd"
	"github.com/ruaan-deysel/eventwatch/daemon/domain"
	"github.com/ruaan-deysel/eventwatch/daemon/logger"
)

// Version is the application version, set at build time via ldflags.
var Version = "dev"

var cli struct {
	LogsDir  string `default:"/var/log" help:"directory to store logs"`
	Port     int    `default:"8043" help:"HTTP server port"`
	Debug    bool   `default:"false" help:"enable debug mode with stdout logging"`
	LogLevel string `default:"info" help:"log level: debug, info, warning, error"`

	CORSOrigin string `default:"*" env:"CORS_ORIGIN" help:"Access-Control-Allow-Origin value (default: *)"`

	IngestQueueCapacity   int    `default:"1024" env:"INGEST_QUEUE_CAPACITY" help:"engine ingest queue capacity (0 = default of 1024)"`
	AnalyzerQueueCapacity int    `default:"256" env:"ANALYZER_QUEUE_CAPACITY" help:"per-analyzer event queue capacity (0 = default of 256)"`
	ShutdownGraceSeconds  int    `default:"10" env:"SHUTDOWN_GRACE_SECONDS" help:"seconds to wait for analyzers to drain on shutdown"`
	RuleStoragePath       string `default:"/etc/eventwatch/rules.json" env:"RULE_STORAGE_PATH" help:"path to the JSON rule definition file"`
	ArchivePath           string `default:"" env:"ARCHIVE_PATH" help:"optional path to persist the archive document view (empty means in-memory only)"`
	AlarmChannels         string `default:"" env:"ALARM_CHANNELS" help:"comma-separated shoutrrr notification URLs"`

	Boot     cmd.Boot     `cmd:"" default:"1" help:"start the analysis engine"`
	MCPStdio cmd.MCPStdio `cmd:"mcp-stdio" help:"run MCP server over stdin/stdout for local AI clients"`
}

// cleanupOldLogs removes old rotated log files from previous versions.
// lumberjack's MaxBackups only prevents new backups, it doesn't clean up
// existing ones from before the setting was changed.
func cleanupOldLogs(logsDir, baseName string) {
	pattern := filepath.Join(logsDir, baseName+"-*.log")
	files, err := filepath.Glob(pattern)
	if err != nil {
		return
	}
	for _, f := range files {
		_ = os.Remove(f)
	}
}

func main() {
	ctx := kong.Parse(&cli)

	// STDIO mode reserves stdout for MCP JSON-RPC.
	isStdio := ctx.Command() == "mcp-stdio"

	fileCfg, err := domain.LoadConfigFile(domain.DefaultConfigPath)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "WARNING: failed to load config file: %v\n", err)
	}
	applyFileConfig(fileCfg)

	switch strings.ToLower(cli.LogLevel) {
	case "debug":
		logger.SetLevel(logger.LevelDebug)
	case "info":
		logger.SetLevel(logger.LevelInfo)
	case "warning", "warn":
		logger.SetLevel(logger.LevelWarning)
	case "error":
		logger.SetLevel(logger.LevelError)
	default:
		logger.SetLevel(logger.LevelInfo)
	}

	if isStdio {
		cleanupOldLogs(cli.LogsDir, "eventwatch")
		fileLogger := &lumberjack.Logger{
			Filename:   filepath.Join(cli.LogsDir, "eventwatch.log"),
			MaxSize:    5,
			MaxBackups: 1,
			MaxAge:     1,
			Compress:   false,
		}
		log.SetOutput(io.MultiWriter(fileLogger, os.Stderr))
	} else if cli.Debug {
		log.SetOutput(os.Stdout)
		log.SetFlags(log.LstdFlags | log.Lshortfile)
		logger.SetLevel(logger.LevelDebug)
		log.Println("Debug mode enabled - logging to stdout")
	} else {
		cleanupOldLogs(cli.LogsDir, "eventwatch")
		fileLogger := &lumberjack.Logger{
			Filename:   filepath.Join(cli.LogsDir, "eventwatch.log"),
			MaxSize:    5,
			MaxBackups: 1,
			MaxAge:     1,
			Compress:   false,
		}
		log.SetOutput(io.MultiWriter(fileLogger, os.Stdout))
	}

	log.Printf("Starting eventwatch v%s (log level: %s)", Version, cli.LogLevel)

	var alarmChannels []string
	if cli.AlarmChannels != "" {
		for _, ch := range strings.Split(cli.AlarmChannels, ",") {
			ch = strings.TrimSpace(ch)
			if ch != "" {
				alarmChannels = append(alarmChannels, ch)
			}
		}
	}

	appCtx := &domain.Context{
		Config: domain.Config{
			Version:               Version,
			Port:                  cli.Port,
			CORSOrigin:            cli.CORSOrigin,
			IngestQueueCapacity:   cli.IngestQueueCapacity,
			AnalyzerQueueCapacity: cli.AnalyzerQueueCapacity,
			ShutdownGrace:         durationSeconds(cli.ShutdownGraceSeconds),
			RuleStoragePath:       cli.RuleStoragePath,
			ArchivePath:           cli.ArchivePath,
			AlarmChannels:         alarmChannels,
		},
		Hub: domain.NewEventBus(1024),
	}

	err = ctx.Run(appCtx)
	ctx.FatalIfErrorf(err)
}

func durationSeconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// applyFileConfig merges config file values into the CLI struct. It runs
// after kong.Parse and copies every value present in the config file over
// the parsed field, whether that field came from a struct default, an env
// var or a CLI flag. Fields absent from the file keep their parsed value.
func applyFileConfig(cfg *domain.FileConfig) {
	if cfg == nil {
		return
	}

	setInt := func(dst *int, src *int) {
		if src != nil {
			*dst = *src
		}
	}
	setStr := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setBool := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}

	setInt(&cli.Port, cfg.Port)
	setStr(&cli.LogLevel, cfg.LogLevel)
	setStr(&cli.LogsDir, cfg.LogsDir)
	setBool(&cli.Debug, cfg.Debug)
	setStr(&cli.CORSOrigin, cfg.CORSOrigin)
	setInt(&cli.IngestQueueCapacity, cfg.IngestQueueCapacity)
	setInt(&cli.AnalyzerQueueCapacity, cfg.AnalyzerQueueCapacity)
	setInt(&cli.ShutdownGraceSeconds, cfg.ShutdownGraceSeconds)
	setStr(&cli.RuleStoragePath, cfg.RuleStoragePath)
	setStr(&cli.ArchivePath, cfg.ArchivePath)

	if cfg.AlarmChannels != nil {
		cli.AlarmChannels = strings.Join(*cfg.AlarmChannels, ",")
	}
}
