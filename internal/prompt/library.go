// Package prompt holds the versioned prompt template library. Templates
// are loaded from a YAML file; multiple versions of the same template ID
// can coexist for A/B comparison, with variant selection kept
// deterministic per task so reruns are reproducible.
package prompt

import (
	"hash/fnv"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Template is one versioned prompt template.
type Template struct {
	ID          string   `yaml:"id"`
	Version     string   `yaml:"version"`
	Description string   `yaml:"description"`
	System      string   `yaml:"system"`
	Template    string   `yaml:"template"`
	Variables   []string `yaml:"variables"`
	Tags        []string `yaml:"tags"`
}

// Library indexes templates by ID, preserving version order from the
// source file.
type Library struct {
	templates map[string][]Template
}

// libraryFile is the on-disk YAML shape.
type libraryFile struct {
	Templates []Template `yaml:"templates"`
}

// Load reads a template library from a YAML file.
func Load(path string) (*Library, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "prompt: read library %s", path)
	}

	var file libraryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, eris.Wrapf(err, "prompt: parse library %s", path)
	}

	lib := &Library{templates: make(map[string][]Template)}
	for _, t := range file.Templates {
		if t.ID == "" || t.Template == "" {
			return nil, eris.Errorf("prompt: template missing id or body in %s", path)
		}
		lib.templates[t.ID] = append(lib.templates[t.ID], t)
	}
	return lib, nil
}

// Default returns the built-in library used when no file is configured.
func Default() *Library {
	return &Library{templates: map[string][]Template{
		riskAnalysisID: {{
			ID:        riskAnalysisID,
			Version:   "v1",
			System:    riskAnalysisSystem,
			Template:  riskAnalysisTemplate,
			Variables: []string{"task_type", "business_impact", "description"},
		}},
	}}
}

const riskAnalysisID = "risk_analysis"

const riskAnalysisSystem = `You are an expert risk analyst for financial services.
Analyze the given scenario and provide a structured risk assessment.

Return your response in JSON format with these exact fields:
{
  "risk_score": <integer 0-100>,
  "confidence": <float 0.0-1.0>,
  "risk_level": <string: "LOW", "MEDIUM", "HIGH", "CRITICAL">,
  "primary_concerns": [<list of main risk factors>],
  "recommendation": <string: recommended action>,
  "reasoning": <string: detailed explanation>
}`

const riskAnalysisTemplate = `Task Type: {{task_type}}
Business Impact: {{business_impact}}

Scenario:
{{description}}

Provide comprehensive risk analysis.`

// Pick returns the template version to use for the given task ID. With a
// single version it is returned directly; with several, the choice is an
// FNV hash of the task ID over the version count, so a task always sees
// the same variant.
func (l *Library) Pick(id, taskID string) (*Template, error) {
	versions, ok := l.templates[id]
	if !ok || len(versions) == 0 {
		return nil, eris.Errorf("prompt: unknown template %q", id)
	}
	if len(versions) == 1 {
		return &versions[0], nil
	}

	h := fnv.New32a()
	h.Write([]byte(taskID))
	return &versions[h.Sum32()%uint32(len(versions))], nil
}

// Render substitutes {{variable}} placeholders. Every declared variable
// must be provided; unknown extras are ignored.
func (t *Template) Render(vars map[string]string) (string, error) {
	out := t.Template
	for _, name := range t.Variables {
		val, ok := vars[name]
		if !ok {
			return "", eris.Errorf("prompt: missing variable %q for template %s/%s", name, t.ID, t.Version)
		}
		out = strings.ReplaceAll(out, "{{"+name+"}}", val)
	}
	return out, nil
}

// RiskAnalysis renders the risk analysis prompt for a task, returning the
// system prompt and the rendered user message.
func (l *Library) RiskAnalysis(taskID string, vars map[string]string) (system, user string, err error) {
	t, err := l.Pick(riskAnalysisID, taskID)
	if err != nil {
		return "", "", err
	}
	user, err = t.Render(vars)
	if err != nil {
		return "", "", err
	}
	return t.System, user, nil
}
