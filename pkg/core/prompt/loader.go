package prompt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"policy_compass/pkg/core/logger"
)

// LoadFromDirectory loads prompt overrides from a directory structure and
// returns how many were registered.
// Expected structure:
//
//	baseDir/
//	  prompts/
//	    analysis/
//	      policy_comparison.json
//	    chat/
//	      policy_assistant.json
func (r *Registry) LoadFromDirectory(baseDir string) (int, error) {
	promptDir := filepath.Join(baseDir, "prompts")
	if _, err := os.Stat(promptDir); os.IsNotExist(err) {
		return 0, fmt.Errorf("prompts directory not found: %s", promptDir)
	}

	loaded := 0
	err := filepath.Walk(promptDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		// Skip directories and non-JSON files
		if info.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}

		var pt PromptTemplate
		if err := json.Unmarshal(data, &pt); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}

		if pt.ID == "" {
			pt.ID = generateIDFromPath(path, promptDir)
		}
		if pt.Category == "" {
			pt.Category = detectCategory(path, promptDir)
		}

		if err := r.Register(&pt); err != nil {
			return fmt.Errorf("failed to register %s: %w", pt.ID, err)
		}
		loaded++
		return nil
	})
	if err != nil {
		return loaded, fmt.Errorf("failed to load prompts: %w", err)
	}

	logger.Component("prompt").Infof("loaded %d prompt overrides from %s", loaded, baseDir)
	return loaded, nil
}

// generateIDFromPath creates a prompt ID from the file path
// e.g., "prompts/analysis/policy_comparison.json" -> "analysis.policy_comparison"
func generateIDFromPath(path string, baseDir string) string {
	relPath, _ := filepath.Rel(baseDir, path)
	relPath = strings.TrimSuffix(relPath, ".json")
	relPath = strings.ReplaceAll(relPath, string(filepath.Separator), ".")
	return relPath
}

// detectCategory extracts the category from the folder structure
func detectCategory(path string, baseDir string) string {
	relPath, _ := filepath.Rel(baseDir, path)
	parts := strings.Split(relPath, string(filepath.Separator))
	if len(parts) > 1 {
		return parts[0]
	}
	return "default"
}

var funcs = template.FuncMap{
	"join": strings.Join,
}

func render(id, text string, ctx *PromptExecutionContext) (string, error) {
	if text == "" {
		return "", nil
	}

	tmpl, err := template.New(id).Funcs(funcs).Option("missingkey=error").Parse(text)
	if err != nil {
		return "", fmt.Errorf("failed to parse template %s: %w", id, err)
	}

	var vars map[string]interface{}
	if ctx != nil {
		vars = ctx.Variables
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", id, err)
	}

	return buf.String(), nil
}

// RenderUserPrompt executes the user prompt template with the given context
func RenderUserPrompt(pt *PromptTemplate, ctx *PromptExecutionContext) (string, error) {
	return render(pt.ID+".user", pt.UserPromptTmpl, ctx)
}

// RenderSystemPrompt executes the system prompt template with the given context
func RenderSystemPrompt(pt *PromptTemplate, ctx *PromptExecutionContext) (string, error) {
	return render(pt.ID+".system", pt.SystemPrompt, ctx)
}
