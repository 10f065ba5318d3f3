// Package security evaluates generated commands against regex guardrail
// rules. Assessments are advisory: nothing is blocked, results are colored.
package security

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/doeshing/kmd/assets"
	"github.com/doeshing/kmd/internal/domain"
	"github.com/doeshing/kmd/internal/pkg/filesystem"
	"github.com/doeshing/kmd/internal/pkg/logging"
	"github.com/doeshing/kmd/internal/ports"
)

// Guardrail implements the SecurityService port.
type Guardrail struct {
	patterns []compiledPattern
}

type compiledPattern struct {
	re   *regexp.Regexp
	rule DangerPattern
}

// DangerPattern describes a regex-based guardrail rule.
type DangerPattern struct {
	Pattern string `yaml:"pattern"`
	Level   string `yaml:"level"`
	Message string `yaml:"message"`
}

// RulesFile is the YAML schema root.
type RulesFile struct {
	Rules struct {
		DangerPatterns []DangerPattern `yaml:"danger_patterns"`
	} `yaml:"rules"`
}

// DefaultRulesPath returns ~/.kmd/guardrail.yaml.
func DefaultRulesPath() string {
	return filepath.Join(filesystem.DataDir(), "guardrail.yaml")
}

// NewGuardrail loads guardrail rules from path, falling back to the embedded
// defaults when the file is missing or empty.
func NewGuardrail(path string, logger *zap.Logger) (*Guardrail, error) {
	logger = logging.NopIfNil(logger)
	rules, fromFile, err := loadRules(path)
	if err != nil {
		return nil, err
	}
	guardrail, err := compileRules(rules)
	if err != nil {
		return nil, err
	}

	if fromFile {
		logger.Info("guardrail rules loaded",
			zap.String("path", path),
			zap.Int("rules", len(guardrail.patterns)))
	} else {
		logger.Debug("guardrail using embedded rules", zap.Int("rules", len(guardrail.patterns)))
	}
	return guardrail, nil
}

// NewDefaultGuardrail builds a guardrail from the embedded rules only,
// ignoring any file on disk.
func NewDefaultGuardrail(logger *zap.Logger) (*Guardrail, error) {
	var rules RulesFile
	if err := yaml.Unmarshal(assets.DefaultGuardrailYAML, &rules); err != nil {
		return nil, fmt.Errorf("embedded guardrail rules: %w", err)
	}
	guardrail, err := compileRules(rules)
	if err != nil {
		return nil, err
	}
	logging.NopIfNil(logger).Debug("guardrail using embedded rules",
		zap.Int("rules", len(guardrail.patterns)))
	return guardrail, nil
}

func compileRules(rules RulesFile) (*Guardrail, error) {
	var compiled []compiledPattern
	for _, pattern := range rules.Rules.DangerPatterns {
		re, err := regexp.Compile(pattern.Pattern)
		if err != nil {
			return nil, fmt.Errorf("guardrail rule %q: %w", pattern.Pattern, err)
		}
		compiled = append(compiled, compiledPattern{
			re:   re,
			rule: pattern,
		})
	}
	return &Guardrail{patterns: compiled}, nil
}

// Evaluate implements ports.SecurityService. The highest-severity matching
// rule determines the level; every match contributes a reason.
func (g *Guardrail) Evaluate(command string) (domain.RiskAssessment, error) {
	assessment := domain.RiskAssessment{Level: domain.RiskSafe}
	for _, pattern := range g.patterns {
		if !pattern.re.MatchString(command) {
			continue
		}
		level := parseRiskLevel(pattern.rule.Level)
		if level.Severity() > assessment.Level.Severity() {
			assessment.Level = level
		}
		assessment.Reasons = append(assessment.Reasons, pattern.rule.Message)
		assessment.MatchedRules = append(assessment.MatchedRules, pattern.rule.Pattern)
	}
	return assessment, nil
}

func loadRules(path string) (RulesFile, bool, error) {
	var rules RulesFile
	path = expandPath(path)
	data, err := os.ReadFile(path)
	if err != nil {
		if defErr := yaml.Unmarshal(assets.DefaultGuardrailYAML, &rules); defErr != nil {
			return RulesFile{}, false, fmt.Errorf("embedded guardrail rules: %w", defErr)
		}
		return rules, false, nil
	}
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return RulesFile{}, false, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(rules.Rules.DangerPatterns) == 0 {
		if defErr := yaml.Unmarshal(assets.DefaultGuardrailYAML, &rules); defErr != nil {
			return RulesFile{}, false, fmt.Errorf("embedded guardrail rules: %w", defErr)
		}
		return rules, false, nil
	}
	return rules, true, nil
}

func parseRiskLevel(value string) domain.RiskLevel {
	switch strings.ToLower(value) {
	case "low":
		return domain.RiskLow
	case "medium":
		return domain.RiskMedium
	case "high":
		return domain.RiskHigh
	case "critical":
		return domain.RiskCritical
	default:
		return domain.RiskSafe
	}
}

func expandPath(path string) string {
	if path == "" {
		return DefaultRulesPath()
	}
	return filesystem.ExpandHome(path)
}

var _ ports.SecurityService = (*Guardrail)(nil)
