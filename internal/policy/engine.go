// Package policy decides which players may use training commands.
package policy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/open-policy-agent/opa/ast"
	"github.com/open-policy-agent/opa/rego"
	"github.com/rs/zerolog"

	"github.com/takeda/ttrain/internal/config"
)

// PermissionInput describes a permission check.
type PermissionInput struct {
	Player     string `json:"player"`
	Permission string `json:"permission"`
	World      string `json:"world"`
}

// Well-known permission nodes.
const (
	PermUse   = "ttrain.use"
	PermSpawn = "ttrain.spawn"
	PermMenu  = "ttrain.menu"
	PermAdmin = "ttrain.admin"
)

// Engine evaluates permission checks against OPA policies. With no
// policy directory configured it falls back to the static default.
type Engine struct {
	policyDir    string
	defaultAllow bool
	logger       zerolog.Logger

	allowQuery rego.PreparedEvalQuery
	modules    map[string]*ast.Module
}

// NewEngine creates a new policy engine
func NewEngine(cfg config.PolicyConfig, logger zerolog.Logger) (*Engine, error) {
	e := &Engine{
		policyDir:    cfg.OPAPolicyDir,
		defaultAllow: cfg.DefaultAllow,
		logger:       logger.With().Str("component", "policy").Logger(),
		modules:      make(map[string]*ast.Module),
	}

	if e.policyDir == "" {
		e.logger.Info().Bool("default_allow", e.defaultAllow).Msg("No policy directory, using static default")
		return e, nil
	}

	if err := e.loadPolicies(); err != nil {
		return nil, fmt.Errorf("failed to load policies: %w", err)
	}

	if err := e.prepareAllowQuery(); err != nil {
		return nil, fmt.Errorf("failed to prepare allow query: %w", err)
	}

	e.logger.Info().Str("policy_dir", e.policyDir).Msg("Policy engine initialized")

	return e, nil
}

// loadPolicies loads all .rego files from the policy directory
func (e *Engine) loadPolicies() error {
	files, err := filepath.Glob(filepath.Join(e.policyDir, "*.rego"))
	if err != nil {
		return fmt.Errorf("failed to glob policy files: %w", err)
	}

	if len(files) == 0 {
		return fmt.Errorf("no policy files found in %s", e.policyDir)
	}

	e.logger.Info().Int("count", len(files)).Msg("Loading policy files")

	for _, file := range files {
		content, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read policy file %s: %w", file, err)
		}

		module, err := ast.ParseModule(file, string(content))
		if err != nil {
			return fmt.Errorf("failed to parse policy file %s: %w", file, err)
		}

		e.modules[file] = module
		e.logger.Debug().Str("file", file).Str("package", module.Package.Path.String()).Msg("Loaded policy module")
	}

	return nil
}

// prepareAllowQuery prepares the permission query
func (e *Engine) prepareAllowQuery() error {
	ctx := context.Background()

	opts := append([]func(*rego.Rego){rego.Query("data.ttrain.perms.allow")}, e.withModules()...)
	r := rego.New(opts...)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return fmt.Errorf("failed to prepare allow query: %w", err)
	}

	e.allowQuery = query
	e.logger.Debug().Msg("Allow query prepared")

	return nil
}

// withModules returns rego options for all loaded modules
func (e *Engine) withModules() []func(*rego.Rego) {
	opts := make([]func(*rego.Rego), 0, len(e.modules))
	for _, module := range e.modules {
		opts = append(opts, rego.Module(module.Package.Path.String(), module.String()))
	}
	return opts
}

// Allow evaluates a permission check
func (e *Engine) Allow(ctx context.Context, input PermissionInput) (bool, error) {
	if e.policyDir == "" {
		return e.defaultAllow, nil
	}

	results, err := e.allowQuery.Eval(ctx, rego.EvalInput(map[string]interface{}{
		"player":     input.Player,
		"permission": input.Permission,
		"world":      input.World,
	}))
	if err != nil {
		return false, fmt.Errorf("allow query evaluation failed: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		// Policy did not produce a decision
		return e.defaultAllow, nil
	}

	allowed, ok := results[0].Expressions[0].Value.(bool)
	if !ok {
		return false, fmt.Errorf("allow decision is not a bool: %T", results[0].Expressions[0].Value)
	}

	return allowed, nil
}

// Reload reloads all policies from disk
func (e *Engine) Reload() error {
	if e.policyDir == "" {
		return nil
	}

	e.logger.Info().Msg("Reloading policies")

	e.modules = make(map[string]*ast.Module)

	if err := e.loadPolicies(); err != nil {
		return fmt.Errorf("failed to reload policies: %w", err)
	}

	if err := e.prepareAllowQuery(); err != nil {
		return fmt.Errorf("failed to re-prepare allow query: %w", err)
	}

	e.logger.Info().Msg("Policies reloaded successfully")

	return nil
}
