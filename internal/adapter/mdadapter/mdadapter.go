package mdadapter

import (
	"bytes"
	_ "embed"
	"fmt"
	htmltemplate "html/template"
	"io"
	"log/slog"
	"strings"
	"text/template"
	"time"

	"github.com/justa/mapupload/internal/entity"
	"github.com/spf13/afero"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	"go.abhg.dev/goldmark/frontmatter"
)

const (
	defaultTitle = "Map upload queue"
	defaultLimit = 10
)

var (
	//go:embed templates/status.md
	defaultStatusTemplate []byte

	//go:embed templates/page.html
	pageTemplateContent string

	pageTemplate = htmltemplate.Must(htmltemplate.New("page").Parse(pageTemplateContent))

	mdEscaper = strings.NewReplacer(
		`\`, `\\`, "*", `\*`, "_", `\_`, "|", `\|`, "[", `\[`, "]", `\]`,
		"<", `\<`, ">", `\>`, "#", `\#`, "`", "\\`",
		"\r\n", " ", "\n", " ", "\r", " ",
	)
)

// Frontmatter is the metadata block of a status template.
type Frontmatter struct {
	Title string `yaml:"title"`
	Limit int    `yaml:"limit"`
}

type statusRenderer struct {
	md   goldmark.Markdown
	tmpl *template.Template
	fm   Frontmatter
	log  *slog.Logger
}

// NewStatusRenderer loads the status template from path, or the built-in one if path is empty.
func NewStatusRenderer(path string, log *slog.Logger) (*statusRenderer, error) {
	return NewStatusRendererWithFS(afero.NewOsFs(), path, log)
}

func NewStatusRendererWithFS(fs afero.Fs, path string, log *slog.Logger) (*statusRenderer, error) {
	content := defaultStatusTemplate
	if path != "" {
		var err error
		if content, err = afero.ReadFile(fs, path); err != nil {
			return nil, fmt.Errorf("cannot read status template: %s: %w", path, err)
		}
	}

	md := goldmark.New(
		goldmark.WithExtensions(
			&frontmatter.Extender{},
			extension.Table,
		),
		goldmark.WithRendererOptions(
			html.WithHardWraps(),
			html.WithXHTML(),
		),
	)

	fm, err := readFrontmatter(md, content)
	if err != nil {
		return nil, err
	}

	tmpl, err := template.New("status").Funcs(template.FuncMap{
		"inc":      func(i int) int { return i + 1 },
		"escape":   mdEscaper.Replace,
		"outcome":  outcome,
		"duration": func(d time.Duration) string { return d.Round(time.Second).String() },
	}).Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("cannot parse status template: %w", err)
	}

	return &statusRenderer{
		md:   md,
		tmpl: tmpl,
		fm:   *fm,
		log:  log.With(slog.String("item", "StatusRenderer")),
	}, nil
}

func (r *statusRenderer) Title() string {
	return r.fm.Title
}

// Limit is the number of history records the template wants to show.
func (r *statusRenderer) Limit() int {
	return r.fm.Limit
}

// Render writes the status page as a complete HTML document.
func (r *statusRenderer) Render(w io.Writer, status *entity.QueueStatus) error {
	var src bytes.Buffer
	if err := r.tmpl.Execute(&src, status); err != nil {
		return fmt.Errorf("cannot execute status template: %w", err)
	}

	var body bytes.Buffer
	if err := r.md.Convert(src.Bytes(), &body); err != nil {
		return fmt.Errorf("cannot convert status markdown: %w", err)
	}

	err := pageTemplate.Execute(w, struct {
		Title string
		Body  htmltemplate.HTML
	}{
		Title: r.fm.Title,
		Body:  htmltemplate.HTML(body.String()),
	})
	if err != nil {
		return fmt.Errorf("cannot execute page template: %w", err)
	}

	return nil
}

func readFrontmatter(md goldmark.Markdown, content []byte) (*Frontmatter, error) {
	fm := Frontmatter{
		Title: defaultTitle,
		Limit: defaultLimit,
	}

	ctx := parser.NewContext()
	if err := md.Convert(content, io.Discard, parser.WithContext(ctx)); err != nil {
		return nil, fmt.Errorf("cannot parse status template: %w", err)
	}

	if data := frontmatter.Get(ctx); data != nil {
		if err := data.Decode(&fm); err != nil {
			return nil, fmt.Errorf("cannot unmarshal frontmatter: %w", err)
		}
	}

	if fm.Limit < 1 {
		fm.Limit = defaultLimit
	}

	return &fm, nil
}

func outcome(rec *entity.JobRecord) string {
	if rec.Status == entity.JobStatusCompleted {
		return string(rec.Status)
	}

	if rec.Stage != "" {
		return fmt.Sprintf("%s at %s: %s", rec.Status, rec.Stage, rec.Error)
	}

	return fmt.Sprintf("%s: %s", rec.Status, rec.Error)
}
