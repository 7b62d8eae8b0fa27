package formatting

import (
	"io"

	"gopkg.in/yaml.v3"
)

// YAMLFormatter writes YAML documents.
type YAMLFormatter struct {
	options Options
}

// NewYAMLFormatter creates a new YAML formatter
func NewYAMLFormatter(options Options) Formatter {
	return &YAMLFormatter{options: options}
}

// FormatRegistrations writes views as a YAML sequence.
func (f *YAMLFormatter) FormatRegistrations(w io.Writer, views []RegistrationView) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(views); err != nil {
		return err
	}
	return enc.Close()
}
