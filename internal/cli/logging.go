package cli

import (
	"fmt"
	"strings"

	"github.com/zeromicro/go-zero/core/logx"

	"tradewind/internal/config"
	"tradewind/pkg/confkit"
)

// ConfigSummaryLines returns human readable lines describing the loaded app config.
func ConfigSummaryLines(cfg *config.Config) []string {
	if cfg == nil {
		return []string{"Configuration: <nil>"}
	}

	lines := []string{
		fmt.Sprintf("Environment: %s", cfg.Env),
		fmt.Sprintf("Postgres: %s", presence(strings.TrimSpace(cfg.Postgres.DSN) != "")),
		sectionLine("Engine config", cfg.Engine),
		sectionLine("Strategy config", cfg.Strategy),
		sectionLine("Risk config", cfg.Risk),
		sectionLine("Position config", cfg.Position),
		sectionLine("Exchange config", cfg.Exchange),
		sectionLine("Market config", cfg.Market),
	}

	if cfg.Engine.Value != nil {
		lines = append(lines,
			fmt.Sprintf("Symbols: %s", strings.Join(cfg.Engine.Value.Symbols, ", ")),
			fmt.Sprintf("Interval: %s", cfg.Engine.Value.Interval.String()),
		)
	}

	return lines
}

// LogConfigSummary emits the configuration summary using logx.
func LogConfigSummary(cfg *config.Config) {
	lines := ConfigSummaryLines(cfg)
	if len(lines) == 0 {
		return
	}
	logx.Info("configuration summary")
	for _, line := range lines {
		logx.Infof("config • %s", line)
	}
}

func presence(ok bool) string {
	if ok {
		return "configured"
	}
	return "not configured"
}

func sectionLine[T any](name string, section confkit.Section[T]) string {
	switch {
	case strings.TrimSpace(section.File) != "":
		return fmt.Sprintf("%s: %s", name, section.File)
	case section.Value != nil:
		return fmt.Sprintf("%s: inline", name)
	default:
		return fmt.Sprintf("%s: not configured", name)
	}
}
