// Command reviewrouter is a thin, flag-driven entry point over
// internal/router: read a unified diff and a config file, dispatch it
// to every configured review agent, print the merged report as JSON.
// It has no forge integration and no config-file discovery; it exists
// only to give the router an executable front door.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"

	"github.com/oddessentials/reviewrouter/internal/agents"
	"github.com/oddessentials/reviewrouter/internal/agents/anthropic"
	"github.com/oddessentials/reviewrouter/internal/agents/controlflow"
	"github.com/oddessentials/reviewrouter/internal/agents/ollama"
	"github.com/oddessentials/reviewrouter/internal/agents/openai"
	"github.com/oddessentials/reviewrouter/internal/agents/semgrep"
	"github.com/oddessentials/reviewrouter/internal/auditlog"
	"github.com/oddessentials/reviewrouter/internal/cache"
	"github.com/oddessentials/reviewrouter/internal/config"
	"github.com/oddessentials/reviewrouter/internal/finding"
	"github.com/oddessentials/reviewrouter/internal/logutil"
	"github.com/oddessentials/reviewrouter/internal/router"
)

type output struct {
	Summary  router.RunSummary `json:"summary"`
	Findings []finding.Finding `json:"findings"`
}

func main() {
	diffPath := flag.String("diff", "-", "path to a unified diff file, or - for stdin")
	configPath := flag.String("config", "", "path to a YAML or JSON config file")
	repoPath := flag.String("repo", ".", "path to the repository the diff applies to")
	logLevel := flag.String("log-level", "", "override config log_level (debug|info|warn|error)")
	llmRatePerMin := flag.Int("llm-rate-per-min", 0, "cap LLM agent invocations per minute per provider (0 disables)")
	flag.Parse()

	if err := run(*diffPath, *configPath, *repoPath, *logLevel, *llmRatePerMin); err != nil {
		fmt.Fprintf(os.Stderr, "reviewrouter: %v\n", err)
		os.Exit(1)
	}
}

func run(diffPath, configPath, repoPath, logLevelOverride string, llmRatePerMin int) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if logLevelOverride != "" {
		cfg.LogLevel = logLevelOverride
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := logutil.New(os.Stderr, parseLogLevel(cfg.LogLevel))

	diffBytes, err := readDiff(diffPath)
	if err != nil {
		return fmt.Errorf("reading diff: %w", err)
	}
	diffContent := string(diffBytes)
	files := parseUnifiedDiff(diffContent)

	audit, closeAudit, err := buildAuditLogger(cfg.AuditLogPath)
	if err != nil {
		return fmt.Errorf("opening audit log: %w", err)
	}
	defer closeAudit()

	resultCache := buildCache(cfg)
	if resultCache != nil {
		defer resultCache.Close()
	}

	homeDir, _ := os.UserHomeDir()
	agentList := []agents.Agent{
		anthropic.New(logger),
		openai.New(logger),
		ollama.New(logger),
		semgrep.New(),
		controlflow.New(logger),
	}

	r := router.New(agentList, cfg, nil, resultCache, audit, logger, homeDir).WithRateLimit(llmRatePerMin, 1)
	findings, summary := r.Run(context.Background(), repoPath, files, diffContent, processEnvMap())

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(output{Summary: summary, Findings: findings})
}

func loadConfig(path string) (*config.Config, error) {
	cfg := &config.Config{
		Limits: config.Limits{MaxCompletionTokens: 4096, BudgetTimeMs: 30000, BudgetMaxLines: 5000},
	}
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func buildAuditLogger(path string) (auditlog.Logger, func(), error) {
	if path == "" {
		return auditlog.NewNoopLogger(), func() {}, nil
	}
	l, err := auditlog.NewFileLogger(path)
	if err != nil {
		return nil, nil, err
	}
	return l, func() { _ = l.Close() }, nil
}

func buildCache(cfg *config.Config) *cache.Cache {
	if cfg.CacheRedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.CacheRedisAddr})
		return cache.NewRedis(client, 24*time.Hour)
	}
	capacity := cfg.CacheCapacity
	if capacity <= 0 {
		capacity = 1000
	}
	return cache.NewLRU(capacity)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func readDiff(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func processEnvMap() map[string]string {
	out := make(map[string]string, len(os.Environ()))
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			out[kv[:i]] = kv[i+1:]
		}
	}
	return out
}

var (
	diffHeaderRe = regexp.MustCompile(`^diff --git a/(.+) b/(.+)$`)
	hunkHeaderRe = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)
)

// parseUnifiedDiff extracts the per-file status and add/delete counts a
// unified diff implies: only the `diff --git` header, the
// `new file mode`/`deleted file mode`/`rename to` lines, the `+++ b/Y`
// line, and `+`/`-`/` ` line-prefix semantics are authoritative. Hunk
// headers are consulted only to recognize a hunk boundary, not to
// compute new-file line numbers here — that mapping is each agent's own
// concern when it parses its diff view.
func parseUnifiedDiff(diff string) []finding.DiffFile {
	var files []finding.DiffFile
	var current *finding.DiffFile

	lines := strings.Split(diff, "\n")
	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "diff --git "):
			if current != nil {
				files = append(files, *current)
			}
			m := diffHeaderRe.FindStringSubmatch(line)
			path := ""
			if len(m) == 3 {
				path = m[2]
			}
			current = &finding.DiffFile{Path: path, Status: finding.StatusModified}
		case strings.HasPrefix(line, "new file mode"):
			if current != nil {
				current.Status = finding.StatusAdded
			}
		case strings.HasPrefix(line, "deleted file mode"):
			if current != nil {
				current.Status = finding.StatusDeleted
			}
		case strings.HasPrefix(line, "rename to "):
			if current != nil {
				current.Status = finding.StatusRenamed
				current.Path = strings.TrimPrefix(line, "rename to ")
			}
		case strings.HasPrefix(line, "+++ "):
			// already have the path from the diff --git header; +++
			// only matters for /dev/null detection on a pure delete.
			if current != nil && strings.TrimPrefix(line, "+++ ") == "/dev/null" {
				current.Status = finding.StatusDeleted
			}
		case hunkHeaderRe.MatchString(line):
			continue
		case current != nil && strings.HasPrefix(line, "+") && !strings.HasPrefix(line, "+++"):
			current.Additions++
		case current != nil && strings.HasPrefix(line, "-") && !strings.HasPrefix(line, "---"):
			current.Deletions++
		}
	}
	if current != nil {
		files = append(files, *current)
	}
	return files
}
