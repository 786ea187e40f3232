// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

package authz

import (
	_ "embed"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"

	"github.com/tomtom215/engagecast/internal/cache"
	"github.com/tomtom215/engagecast/internal/config"
	"github.com/tomtom215/engagecast/internal/logging"
	"github.com/tomtom215/engagecast/internal/metrics"
)

//go:embed model.conf
var embeddedModel string

//go:embed policy.csv
var embeddedPolicy string

// Roles bound by NewEnforcer.
const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
)

// Actions compared by the policy.
const (
	ActionRead   = "read"
	ActionWrite  = "write"
	ActionDelete = "delete"
)

// defaultCacheSize bounds the decision cache.
const defaultCacheSize = 4096

// EnforcerConfig holds configuration for the Casbin enforcer.
type EnforcerConfig struct {
	// ModelPath replaces the embedded model when set.
	ModelPath string

	// PolicyPath replaces the embedded policy when set.
	PolicyPath string

	// AdminUsers and OperatorUsers are bound to RoleAdmin and RoleOperator.
	AdminUsers    []string
	OperatorUsers []string

	// CacheTTL is how long a decision is cached. Zero disables the cache.
	CacheTTL time.Duration
}

// ConfigFromSettings builds an EnforcerConfig from loaded configuration.
func ConfigFromSettings(cfg *config.Config) *EnforcerConfig {
	return &EnforcerConfig{
		ModelPath:     cfg.Casbin.ModelPath,
		PolicyPath:    cfg.Casbin.PolicyPath,
		AdminUsers:    cfg.Security.AdminUsers,
		OperatorUsers: cfg.Security.OperatorUsers,
		CacheTTL:      cfg.Casbin.CacheTTL,
	}
}

// Enforcer wraps the Casbin enforcer with a decision cache.
type Enforcer struct {
	config   *EnforcerConfig
	enforcer *casbin.SyncedEnforcer

	// decisions is swapped wholesale on role changes; nil when disabled.
	decisions atomic.Pointer[cache.LRU[bool]]
}

// NewEnforcer loads the model and policy and binds the configured users to
// their roles.
func NewEnforcer(cfg *EnforcerConfig) (*Enforcer, error) {
	if cfg == nil {
		cfg = &EnforcerConfig{}
	}

	var (
		m   model.Model
		err error
	)
	if cfg.ModelPath != "" {
		m, err = model.NewModelFromFile(cfg.ModelPath)
	} else {
		m, err = model.NewModelFromString(embeddedModel)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load casbin model: %w", err)
	}

	var enforcer *casbin.SyncedEnforcer
	if cfg.PolicyPath != "" {
		enforcer, err = casbin.NewSyncedEnforcer(m, fileadapter.NewAdapter(cfg.PolicyPath))
	} else {
		enforcer, err = casbin.NewSyncedEnforcer(m)
		if err == nil {
			err = loadEmbeddedPolicy(enforcer, embeddedPolicy)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}
	// Role bindings come from configuration and never touch the policy file.
	enforcer.EnableAutoSave(false)

	e := &Enforcer{config: cfg, enforcer: enforcer}
	e.resetCache()

	for _, bind := range []struct {
		role  string
		users []string
	}{
		{RoleAdmin, cfg.AdminUsers},
		{RoleOperator, cfg.OperatorUsers},
	} {
		for _, user := range bind.users {
			if _, err := e.AddRoleForUser(user, bind.role); err != nil {
				return nil, err
			}
		}
	}

	logging.Info().
		Int("admins", len(cfg.AdminUsers)).
		Int("operators", len(cfg.OperatorUsers)).
		Bool("custom_model", cfg.ModelPath != "").
		Bool("custom_policy", cfg.PolicyPath != "").
		Msg("Authorization enforcer ready")

	return e, nil
}

// loadEmbeddedPolicy parses "p, ..." and "g, ..." lines. Blank lines and
// lines starting with # are skipped.
func loadEmbeddedPolicy(enforcer *casbin.SyncedEnforcer, policy string) error {
	for _, line := range strings.Split(policy, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Split(line, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}

		switch rule := parts[1:]; parts[0] {
		case "p":
			if len(rule) != 3 {
				return fmt.Errorf("malformed policy line %q", line)
			}
			if _, err := enforcer.AddPolicy(rule[0], rule[1], rule[2]); err != nil {
				return fmt.Errorf("failed to add policy %v: %w", rule, err)
			}
		case "g":
			if len(rule) != 2 {
				return fmt.Errorf("malformed grouping line %q", line)
			}
			if _, err := enforcer.AddGroupingPolicy(rule[0], rule[1]); err != nil {
				return fmt.Errorf("failed to add grouping policy %v: %w", rule, err)
			}
		default:
			return fmt.Errorf("unknown policy type %q", parts[0])
		}
	}
	return nil
}

// Enforce reports whether subject may perform action on object.
func (e *Enforcer) Enforce(subject, object, action string) (bool, error) {
	key := subject + "\x00" + object + "\x00" + action

	decisions := e.decisions.Load()
	if decisions != nil {
		if allowed, ok := decisions.Get(key); ok {
			metrics.RecordAuthzDecision(allowed, true)
			return allowed, nil
		}
	}

	allowed, err := e.enforcer.Enforce(subject, object, action)
	if err != nil {
		return false, fmt.Errorf("enforcement failed: %w", err)
	}
	if decisions != nil {
		decisions.Add(key, allowed)
	}
	metrics.RecordAuthzDecision(allowed, false)
	return allowed, nil
}

// AddRoleForUser binds user to role. Cached decisions are dropped.
func (e *Enforcer) AddRoleForUser(user, role string) (bool, error) {
	added, err := e.enforcer.AddGroupingPolicy(user, role)
	if err != nil {
		return false, fmt.Errorf("failed to add role: %w", err)
	}
	if added {
		e.resetCache()
	}
	return added, nil
}

func (e *Enforcer) resetCache() {
	if e.config.CacheTTL <= 0 {
		return
	}
	e.decisions.Store(cache.NewLRU[bool](defaultCacheSize, e.config.CacheTTL))
}

// ActionForMethod maps an HTTP method to a policy action. Unknown methods
// map to write.
func ActionForMethod(method string) string {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return ActionRead
	case http.MethodDelete:
		return ActionDelete
	default:
		return ActionWrite
	}
}
