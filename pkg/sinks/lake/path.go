package lake

import (
	"bytes"
	"fmt"
	"path"
	"strings"
	"text/template"
	"time"

	"github.com/Masterminds/sprig"
)

// DefaultPathTemplate partitions data files by table and the UTC day they were ingested.
const DefaultPathTemplate = `{{ .Namespace }}/{{ .Table }}/data/{{ dateInZone "2006-01-02" .IngestedAt "UTC" }}/{{ .Snapshot }}.jsonl{{ .Extension }}`

// PathData is available to path templates when naming a new data file.
type PathData struct {
	Namespace  string
	Table      string
	Branch     string
	Snapshot   string // snapshot ID, unique per data file
	Extension  string // compression extension, including the leading dot
	IngestedAt time.Time
}

// pathTemplate renders warehouse paths for data files. Templates have the sprig function
// library available, such as date formatting and string manipulation.
type pathTemplate struct {
	tmpl *template.Template
}

func parsePathTemplate(text string) (*pathTemplate, error) {
	tmpl, err := template.New("path").Funcs(sprig.TxtFuncMap()).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("invalid path template: %w", err)
	}

	return &pathTemplate{tmpl}, nil
}

// Render produces a clean, relative path. Templates must include the snapshot ID, as data
// files are never overwritten.
func (p *pathTemplate) Render(data PathData) (string, error) {
	var buf bytes.Buffer
	if err := p.tmpl.Execute(&buf, data); err != nil {
		return "", err
	}

	rendered := strings.TrimPrefix(path.Clean("/"+buf.String()), "/")
	if rendered == "" {
		return "", fmt.Errorf("path template rendered an empty path")
	}
	if !strings.Contains(rendered, data.Snapshot) {
		return "", fmt.Errorf("path template must include the snapshot, got %q", rendered)
	}

	return rendered, nil
}
