// Package command renders the change command and starts it.
package command

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/valyala/fasttemplate"
)

// ErrInvalidTemplate is returned for templates that cannot be parsed.
var ErrInvalidTemplate = errors.New("invalid command template")

const (
	startTag = "${"
	endTag   = "}"

	// ResponsePlaceholder is the only variable a template may reference.
	ResponsePlaceholder = "response"

	DefaultScriptRunner = "npm run"
)

// Template is a parsed command template. Only ${response} is substituted;
// every other ${...} sequence is written back untouched so that shell
// parameter expansions survive. Nothing in the template is evaluated.
type Template struct {
	text         string
	tpl          *fasttemplate.Template
	isScript     bool
	scriptRunner string
}

// NewTemplate parses text. When isScript is set the rendered command is run
// through scriptRunner (for example "npm run" or "yarn run").
func NewTemplate(text string, isScript bool, scriptRunner string) (*Template, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty template", ErrInvalidTemplate)
	}
	tpl, err := fasttemplate.NewTemplate(text, startTag, endTag)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
	}
	if scriptRunner == "" {
		scriptRunner = DefaultScriptRunner
	}
	return &Template{
		text:         text,
		tpl:          tpl,
		isScript:     isScript,
		scriptRunner: scriptRunner,
	}, nil
}

// Render substitutes body for ${response}.
func (t *Template) Render(body string) string {
	rendered := t.tpl.ExecuteFuncString(func(w io.Writer, tag string) (int, error) {
		if strings.TrimSpace(tag) == ResponsePlaceholder {
			return io.WriteString(w, body)
		}
		return io.WriteString(w, startTag+tag+endTag)
	})
	if t.isScript {
		return t.scriptRunner + " " + rendered
	}
	return rendered
}

// String returns the unrendered template text.
func (t *Template) String() string {
	return t.text
}

// Render parses and renders text in one step using the default script runner.
func Render(text string, isScript bool, body string) (string, error) {
	t, err := NewTemplate(text, isScript, DefaultScriptRunner)
	if err != nil {
		return "", err
	}
	return t.Render(body), nil
}
