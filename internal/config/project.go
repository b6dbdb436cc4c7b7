package config

// ProjectConfig holds per-project configuration for a single directory.
// This allows customizing pipeline behavior per codebase.
type ProjectConfig struct {
	// Extensions overrides the source file suffixes for this project.
	// If empty, the global extension list is used.
	Extensions []string `yaml:"extensions,omitempty"`

	// Model overrides the chat model for this project.
	// If empty, the global model is used.
	Model string `yaml:"model,omitempty"`

	// Personas overrides the system-role instruction per stage.
	// Keys are stage names (analyze, refactor, document, review).
	// Missing keys fall back to the built-in personas.
	Personas map[string]string `yaml:"personas,omitempty"`
}

// File represents the structure of the .codelift configuration file.
type File struct {
	// Projects maps project directory paths to their configurations.
	// Keys should match the path given on the command line.
	Projects map[string]ProjectConfig `yaml:"projects,omitempty"`

	// Defaults contains default project configuration applied to all
	// projects unless overridden in the project-specific configuration.
	Defaults ProjectConfig `yaml:"defaults,omitempty"`
}

// GetProjectConfig returns the configuration for a specific project
// directory. It merges the project-specific configuration with defaults.
func (cf *File) GetProjectConfig(projectDir string) ProjectConfig {
	// Start with defaults. The struct copy aliases the Personas map, so
	// clone it before merging; otherwise a project's overrides would be
	// written into the shared defaults and leak into later projects.
	result := cf.Defaults
	if len(cf.Defaults.Personas) > 0 {
		result.Personas = make(map[string]string, len(cf.Defaults.Personas))
		for k, v := range cf.Defaults.Personas {
			result.Personas[k] = v
		}
	}

	// Override with project-specific configuration if present
	if pc, ok := cf.Projects[projectDir]; ok {
		if len(pc.Extensions) > 0 {
			result.Extensions = pc.Extensions
		}
		if pc.Model != "" {
			result.Model = pc.Model
		}
		if len(pc.Personas) > 0 {
			if result.Personas == nil {
				result.Personas = make(map[string]string)
			}
			for k, v := range pc.Personas {
				result.Personas[k] = v
			}
		}
	}

	return result
}
