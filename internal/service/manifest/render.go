package manifest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/oshokin/bauset/internal/config"
	"github.com/oshokin/bauset/internal/domain/build"
)

// Render substitutes cfg into the template at templatePath and writes outputPath.
// Placeholders use {{.key}}; keys that are not valid identifiers use {{index . "key"}}.
// A placeholder without a matching key fails the render.
func Render(cfg build.BuildConfig, templatePath, outputPath string) error {
	contents, err := os.ReadFile(filepath.Clean(templatePath))
	if err != nil {
		return fmt.Errorf("read template: %w", err)
	}

	tmpl, err := template.New(filepath.Base(templatePath)).
		Option("missingkey=error").
		Parse(string(contents))
	if err != nil {
		return fmt.Errorf("parse template: %w", err)
	}

	var rendered bytes.Buffer
	if err = tmpl.Execute(&rendered, map[string]string(cfg)); err != nil {
		return fmt.Errorf("execute template: %w", err)
	}

	if err = os.WriteFile(filepath.Clean(outputPath), rendered.Bytes(), config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	return nil
}
