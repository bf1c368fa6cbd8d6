package launch

import (
	"bytes"
	"fmt"
	"strconv"
	"text/template"
)

// Vars are the values launcher arguments can reference.
type Vars struct {
	Host      string
	Port      string
	Address   string
	ModsDir   string
	ModsReady bool
}

// VarsFor builds the template values for a request.
func VarsFor(req Request) Vars {
	return Vars{
		Host:      req.Address.Host,
		Port:      strconv.Itoa(req.Address.Port),
		Address:   req.Address.String(),
		ModsDir:   req.ModsDir,
		ModsReady: req.ModsReady,
	}
}

// RenderArgs expands every argument as a text/template over vars.
// Unknown fields are an error rather than an empty string.
func RenderArgs(args []string, vars Vars) ([]string, error) {
	out := make([]string, len(args))
	for i, arg := range args {
		tmpl, err := template.New("").Option("missingkey=error").Parse(arg)
		if err != nil {
			return nil, fmt.Errorf("argument %d: parsing template: %w", i, err)
		}

		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, vars); err != nil {
			return nil, fmt.Errorf("argument %d: executing template: %w", i, err)
		}
		out[i] = buf.String()
	}
	return out, nil
}
