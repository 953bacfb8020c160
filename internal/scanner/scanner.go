// Package scanner measures file complexity with an external counting tool.
package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/danielolaszy/weave/internal/logging"
	"github.com/danielolaszy/weave/pkg/models"
)

// Scanner measures one file of a local checkout. Implementations never
// fail: problems degrade to a zero result carrying the language.
type Scanner interface {
	Scan(ctx context.Context, checkout, file string) models.Complexity
}

// CommandFunc runs a binary and returns its standard output.
type CommandFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// SCC runs scc against single files.
type SCC struct {
	Binary string
	Run    CommandFunc
}

// NewSCC returns a scanner invoking binary, "scc" when empty.
func NewSCC(binary string) *SCC {
	if binary == "" {
		binary = "scc"
	}
	return &SCC{Binary: binary, Run: runCommand}
}

type sccLanguage struct {
	Name       string `json:"Name"`
	Lines      int    `json:"Lines"`
	Code       int    `json:"Code"`
	Comment    int    `json:"Comment"`
	Complexity int    `json:"Complexity"`
}

// Scan implements Scanner.
func (s *SCC) Scan(ctx context.Context, checkout, file string) models.Complexity {
	result := models.Complexity{Language: Language(file)}
	if result.Language == "" {
		result.Language = models.Unknown
	}

	full := filepath.Join(checkout, filepath.FromSlash(file))
	if _, err := os.Stat(full); err != nil {
		logging.Debug("File not present in checkout, skipping scan", "file", file)
		return result
	}

	out, err := s.Run(ctx, s.Binary, "--format", "json", full)
	if err != nil {
		logging.Warn("Complexity scan failed", "file", file, "error", err)
		return result
	}

	langs, err := parseSCC(out)
	if err != nil {
		logging.Warn("Invalid complexity scan output", "file", file, "error", err)
		return result
	}
	if len(langs) == 0 {
		return result
	}

	l := langs[0]
	result.Lines = l.Lines
	result.CodeLines = l.Code
	result.CommentLines = l.Comment
	result.Complexity = l.Complexity
	return result
}

func parseSCC(out []byte) ([]sccLanguage, error) {
	var langs []sccLanguage
	if err := json.Unmarshal(out, &langs); err != nil {
		return nil, fmt.Errorf("failed to decode scc output: %w", err)
	}
	return langs, nil
}

// Nop is a scanner that only reports the language.
type Nop struct{}

// Scan implements Scanner.
func (Nop) Scan(_ context.Context, _, file string) models.Complexity {
	lang := Language(file)
	if lang == "" {
		lang = models.Unknown
	}
	return models.Complexity{Language: lang}
}
