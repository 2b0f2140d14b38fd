package rules

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/gobwas/glob"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"go.uber.org/zap"

	"github.com/ppiankov/trustgate/internal/model"
)

// ParamConstraint bounds one named parameter of a tool call. Empty fields
// impose nothing; a present field must hold.
type ParamConstraint struct {
	Type      string   `yaml:"type,omitempty"`       // string | number | bool | list | map
	MaxLength int      `yaml:"max_length,omitempty"` // caps string and list lengths
	Pattern   string   `yaml:"pattern,omitempty"`    // glob the value must match
	Allowed   []string `yaml:"allowed,omitempty"`    // closed value set
}

// ToolPolicy is the raw, YAML-shaped policy for one tool.
type ToolPolicy struct {
	Name             string                     `yaml:"name"`
	Allowed          bool                       `yaml:"allowed"`
	SecurityLevel    string                     `yaml:"security_level,omitempty"`
	RequiresApproval bool                       `yaml:"requires_approval,omitempty"`
	MaxExecPerHour   int                        `yaml:"max_exec_per_hour,omitempty"`
	AllowedParams    []string                   `yaml:"allowed_params,omitempty"`
	ForbiddenParams  []string                   `yaml:"forbidden_params,omitempty"`
	ParamConstraints map[string]ParamConstraint `yaml:"param_constraints,omitempty"`
	ArgumentSchema   map[string]any             `yaml:"argument_schema,omitempty"`
	DryRunOnly       bool                       `yaml:"dry_run_only,omitempty"`
}

// toolsDoc is the on-disk shape of the tool policy document.
type toolsDoc struct {
	Policies []ToolPolicy `yaml:"policies"`
}

// compiledConstraint is a ParamConstraint with its glob compiled.
type compiledConstraint struct {
	ParamConstraint
	pattern glob.Glob
}

// CompiledPolicy is a validated ToolPolicy ready for evaluation. Level is
// the parsed security level; critical policies have RequiresApproval forced
// to true at compile time.
type CompiledPolicy struct {
	ToolPolicy
	Level       model.SecurityLevel
	constraints map[string]compiledConstraint
	schema      *jsonschema.Schema
}

// compileToolPolicy validates and compiles one raw policy. Any error
// disables the whole policy: a tool whose policy does not compile stays
// unknown to the gate, which rejects it.
func compileToolPolicy(raw ToolPolicy) (*CompiledPolicy, error) {
	raw.Name = strings.TrimSpace(raw.Name)
	if raw.Name == "" {
		return nil, fmt.Errorf("tool policy: empty name")
	}

	// Absent level means the author made no claim: treat as critical.
	// A present but unknown level is a typo worth surfacing, not guessing.
	level := model.LevelCritical
	if raw.SecurityLevel != "" {
		if !model.ValidSecurityLevel(raw.SecurityLevel) {
			return nil, fmt.Errorf("tool policy %s: unknown security_level %q", raw.Name, raw.SecurityLevel)
		}
		level = model.SecurityLevel(raw.SecurityLevel)
	}
	if level == model.LevelCritical {
		raw.RequiresApproval = true
	}

	if raw.MaxExecPerHour < 0 {
		return nil, fmt.Errorf("tool policy %s: negative max_exec_per_hour", raw.Name)
	}

	p := &CompiledPolicy{ToolPolicy: raw, Level: level}

	if len(raw.ParamConstraints) > 0 {
		p.constraints = make(map[string]compiledConstraint, len(raw.ParamConstraints))
		for name, c := range raw.ParamConstraints {
			cc := compiledConstraint{ParamConstraint: c}
			switch c.Type {
			case "", "string", "number", "bool", "list", "map":
			default:
				return nil, fmt.Errorf("tool policy %s: param %s: unknown type %q", raw.Name, name, c.Type)
			}
			if c.MaxLength < 0 {
				return nil, fmt.Errorf("tool policy %s: param %s: negative max_length", raw.Name, name)
			}
			if c.Pattern != "" {
				g, err := glob.Compile(c.Pattern)
				if err != nil {
					return nil, fmt.Errorf("tool policy %s: param %s: pattern: %w", raw.Name, name, err)
				}
				cc.pattern = g
			}
			p.constraints[name] = cc
		}
	}

	if len(raw.ArgumentSchema) > 0 {
		sch, err := compileSchema(raw.ArgumentSchema)
		if err != nil {
			return nil, fmt.Errorf("tool policy %s: argument_schema: %w", raw.Name, err)
		}
		p.schema = sch
	}

	return p, nil
}

// compileSchema turns a YAML-decoded schema document into a compiled
// JSON Schema. The document round-trips through JSON so yaml's
// map[string]any nesting becomes what the compiler expects.
func compileSchema(doc map[string]any) (*jsonschema.Schema, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var obj any
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("policy.json", obj); err != nil {
		return nil, err
	}
	return c.Compile("policy.json")
}

// compileTools compiles every policy, dropping the ones that fail. The
// first policy for a name wins; duplicates are skipped and logged.
func compileTools(raw []ToolPolicy, logger *zap.Logger) map[string]*CompiledPolicy {
	out := make(map[string]*CompiledPolicy, len(raw))
	for _, tp := range raw {
		p, err := compileToolPolicy(tp)
		if err != nil {
			logger.Warn("tool policy disabled", zap.Error(err))
			continue
		}
		if _, dup := out[p.Name]; dup {
			logger.Warn("duplicate tool policy skipped", zap.String("tool", p.Name))
			continue
		}
		out[p.Name] = p
	}
	return out
}

// ValidateParams checks a request's parameters against the policy, in the
// order the gate depends on: forbidden parameters short-circuit first, then
// a non-empty allowlist closes the set, then per-parameter constraints,
// then the optional argument schema. A nil error means the parameters pass.
func (p *CompiledPolicy) ValidateParams(params map[string]any) error {
	for _, f := range p.ForbiddenParams {
		if _, ok := params[f]; ok {
			return fmt.Errorf("Forbidden parameter %q", f)
		}
	}

	if len(p.AllowedParams) > 0 {
		for _, name := range sortedKeys(params) {
			if !contains(p.AllowedParams, name) {
				return fmt.Errorf("parameter %q is not in the allowed set %v", name, p.AllowedParams)
			}
		}
	}

	for _, name := range sortedConstraintNames(p.constraints) {
		v, ok := params[name]
		if !ok {
			continue // presence requirements belong to the schema
		}
		if err := p.constraints[name].check(name, v); err != nil {
			return err
		}
	}

	if p.schema != nil {
		if err := p.validateSchema(params); err != nil {
			return err
		}
	}
	return nil
}

func (p *CompiledPolicy) validateSchema(params map[string]any) error {
	if params == nil {
		params = map[string]any{}
	}
	data, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("parameters are not serializable: %v", err)
	}
	var obj any
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("parameters are not valid JSON: %v", err)
	}
	if err := p.schema.Validate(obj); err != nil {
		return fmt.Errorf("argument schema violation: %v", err)
	}
	return nil
}

// check validates one parameter value against its constraint.
func (c compiledConstraint) check(name string, v any) error {
	if c.Type != "" {
		if got := typeName(v); got != c.Type {
			return fmt.Errorf("parameter %q must be %s, got %s", name, c.Type, got)
		}
	}
	if c.MaxLength > 0 {
		switch val := v.(type) {
		case string:
			if len(val) > c.MaxLength {
				return fmt.Errorf("parameter %q exceeds max length %d", name, c.MaxLength)
			}
		case []any:
			if len(val) > c.MaxLength {
				return fmt.Errorf("parameter %q exceeds max length %d", name, c.MaxLength)
			}
		}
	}
	if c.pattern != nil {
		if !c.pattern.Match(stringify(v)) {
			return fmt.Errorf("parameter %q does not match pattern %q", name, c.Pattern)
		}
	}
	if len(c.Allowed) > 0 {
		if !contains(c.Allowed, stringify(v)) {
			return fmt.Errorf("parameter %q must be one of %v", name, c.Allowed)
		}
	}
	return nil
}

// typeName maps a Go value to the constraint type vocabulary. Callers hand
// params decoded from JSON or YAML, so numbers arrive as float64 or int.
func typeName(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case bool:
		return "bool"
	case int, int32, int64, uint, uint32, uint64, float32, float64, json.Number:
		return "number"
	case []any, []string:
		return "list"
	case map[string]any:
		return "map"
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func contains(set []string, s string) bool {
	for _, x := range set {
		if x == s {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedConstraintNames(m map[string]compiledConstraint) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DefaultToolPolicies returns the built-in policy set used when no tool
// document exists. The set is deliberately conservative: destructive tools
// require approval and everything carries an hourly budget.
func DefaultToolPolicies() []ToolPolicy {
	return []ToolPolicy{
		{
			Name:           "file_read",
			Allowed:        true,
			SecurityLevel:  "safe",
			MaxExecPerHour: 240,
			ParamConstraints: map[string]ParamConstraint{
				"path": {Type: "string", MaxLength: 4096},
			},
		},
		{
			Name:            "file_write",
			Allowed:         true,
			SecurityLevel:   "medium",
			MaxExecPerHour:  60,
			ForbiddenParams: []string{"sudo"},
			ParamConstraints: map[string]ParamConstraint{
				"path":    {Type: "string", MaxLength: 4096},
				"content": {Type: "string", MaxLength: 1 << 20},
			},
		},
		{
			Name:             "file_delete",
			Allowed:          true,
			SecurityLevel:    "high",
			RequiresApproval: true,
			MaxExecPerHour:   10,
			ParamConstraints: map[string]ParamConstraint{
				"path": {Type: "string", MaxLength: 4096},
			},
		},
		{
			Name:           "command_execute",
			Allowed:        true,
			SecurityLevel:  "critical",
			MaxExecPerHour: 20,
			DryRunOnly:     true,
			ParamConstraints: map[string]ParamConstraint{
				"command": {Type: "string", MaxLength: 4096},
			},
		},
		{
			Name:           "http_request",
			Allowed:        true,
			SecurityLevel:  "medium",
			MaxExecPerHour: 120,
			AllowedParams:  []string{"url", "method", "headers", "body"},
			ParamConstraints: map[string]ParamConstraint{
				"url":    {Type: "string", MaxLength: 2048},
				"method": {Type: "string", Allowed: []string{"GET", "HEAD", "POST", "PUT", "DELETE"}},
			},
		},
		{
			Name:             "email_send",
			Allowed:          true,
			SecurityLevel:    "high",
			RequiresApproval: true,
			MaxExecPerHour:   10,
			AllowedParams:    []string{"to", "subject", "body"},
			ParamConstraints: map[string]ParamConstraint{
				"to": {Type: "string", Pattern: "*@*"},
			},
		},
	}
}

// DefaultToolsYAML returns the commented tool policy template written by
// trustgate init and by the store when the document is missing.
func DefaultToolsYAML() string {
	return `# trustgate tool policies
# Generated by: trustgate init
#
# One policy per tool name. Evaluation order (cannot be changed):
#   1. unknown tool        -> rejected
#   2. allowed: false      -> rejected
#   3. dry_run_only        -> rejected unless the request is a dry run
#   4. max_exec_per_hour   -> rejected once the hourly budget is spent
#   5. parameter checks    -> forbidden_params, allowed_params,
#                             param_constraints, argument_schema
#   6. dangerous patterns  -> rejected on shell injection, privilege
#                             escalation, destructive commands
#   7. requires_approval   -> pending until an operator approves
#
# security_level: safe | low | medium | high | critical
#   safe/low auto-approve; critical always requires approval.
policies:
  - name: file_read
    allowed: true
    security_level: safe
    max_exec_per_hour: 240
    param_constraints:
      path: {type: string, max_length: 4096}

  - name: file_write
    allowed: true
    security_level: medium
    max_exec_per_hour: 60
    forbidden_params: [sudo]
    param_constraints:
      path: {type: string, max_length: 4096}
      content: {type: string, max_length: 1048576}

  - name: file_delete
    allowed: true
    security_level: high
    requires_approval: true
    max_exec_per_hour: 10
    param_constraints:
      path: {type: string, max_length: 4096}

  - name: command_execute
    allowed: true
    security_level: critical
    max_exec_per_hour: 20
    dry_run_only: true
    param_constraints:
      command: {type: string, max_length: 4096}

  - name: http_request
    allowed: true
    security_level: medium
    max_exec_per_hour: 120
    allowed_params: [url, method, headers, body]
    param_constraints:
      url: {type: string, max_length: 2048}
      method: {type: string, allowed: [GET, HEAD, POST, PUT, DELETE]}

  - name: email_send
    allowed: true
    security_level: high
    requires_approval: true
    max_exec_per_hour: 10
    allowed_params: [to, subject, body]
    param_constraints:
      to: {type: string, pattern: "*@*"}
`
}
