// Package site 将用户输入渲染为落地页文件
package site

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"io"
	"io/fs"
	"os"
	"path"
	"strings"
	texttemplate "text/template"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/altnbk/saas-landing-page/internal/adapter/source"
)

const manifestFile = "manifest.yaml"

// 输出格式, 决定模板引擎与转义方式
const (
	FormatHTML     = "html"
	FormatMarkdown = "markdown"
)

//go:embed templates
var embedded embed.FS

// Data 模板变量, 所有字段都会按输出格式转义
type Data struct {
	OrganizationName string
	SignerName       string
	SignerEmail      string
	Year             int
}

// Manifest 模板包描述
type Manifest struct {
	Name  string         `yaml:"name"`
	Files []ManifestFile `yaml:"files"`
}

// ManifestFile 输出文件与模板的对应关系
//
// Format 为空时按输出路径推断: .md 为 markdown, 其余为 html.
type ManifestFile struct {
	Path     string `yaml:"path"`
	Template string `yaml:"template"`
	Format   string `yaml:"format"`
}

// executor html/template 与 text/template 共有的执行方法
type executor interface {
	Execute(w io.Writer, data any) error
}

type entry struct {
	path   string
	format string
	tmpl   executor
}

// Renderer 落地页渲染器
type Renderer struct {
	name    string
	entries []entry
	now     func() time.Time
}

// NewRenderer dir 为空时使用内置模板
func NewRenderer(dir string) (*Renderer, error) {
	if dir == "" {
		sub, err := fs.Sub(embedded, "templates")
		if err != nil {
			return nil, err
		}
		return NewRendererFS(sub)
	}
	return NewRendererFS(os.DirFS(dir))
}

// NewRendererFS 从任意文件系统加载模板包
func NewRendererFS(fsys fs.FS) (*Renderer, error) {
	raw, err := fs.ReadFile(fsys, manifestFile)
	if err != nil {
		return nil, fmt.Errorf("读取模板清单失败: %w", err)
	}

	var manifest Manifest
	if err := yaml.Unmarshal(raw, &manifest); err != nil {
		return nil, fmt.Errorf("解析模板清单失败: %w", err)
	}
	if len(manifest.Files) == 0 {
		return nil, fmt.Errorf("模板清单 %s 未声明任何文件", manifest.Name)
	}

	r := &Renderer{name: manifest.Name, now: time.Now}
	seen := make(map[string]struct{}, len(manifest.Files))
	for _, f := range manifest.Files {
		out, err := cleanPath(f.Path)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[out]; dup {
			return nil, fmt.Errorf("模板清单包含重复路径: %s", out)
		}
		seen[out] = struct{}{}

		format, err := formatOf(f, out)
		if err != nil {
			return nil, err
		}

		var tmpl executor
		name := path.Base(f.Template)
		switch format {
		case FormatMarkdown:
			tmpl, err = texttemplate.New(name).Option("missingkey=error").ParseFS(fsys, f.Template)
		default:
			tmpl, err = htmltemplate.New(name).Option("missingkey=error").ParseFS(fsys, f.Template)
		}
		if err != nil {
			return nil, fmt.Errorf("解析模板 %s 失败: %w", f.Template, err)
		}
		r.entries = append(r.entries, entry{path: out, format: format, tmpl: tmpl})
	}
	return r, nil
}

// Name 模板包名称
func (r *Renderer) Name() string {
	return r.name
}

// Render 渲染全部文件
func (r *Renderer) Render(data Data) ([]source.File, error) {
	if data.Year == 0 {
		data.Year = r.now().Year()
	}

	files := make([]source.File, 0, len(r.entries))
	for _, e := range r.entries {
		in := data
		if e.format == FormatMarkdown {
			in = data.escapeMarkdown()
		}

		var buf bytes.Buffer
		if err := e.tmpl.Execute(&buf, in); err != nil {
			return nil, fmt.Errorf("渲染 %s 失败: %w", e.path, err)
		}
		files = append(files, source.File{Path: e.path, Content: buf.Bytes()})
	}
	return files, nil
}

func formatOf(f ManifestFile, out string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(f.Format)) {
	case "":
		if strings.EqualFold(path.Ext(out), ".md") {
			return FormatMarkdown, nil
		}
		return FormatHTML, nil
	case FormatHTML:
		return FormatHTML, nil
	case FormatMarkdown, "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("不支持的输出格式 %q: %s", f.Format, f.Path)
	}
}

// markdownEscaper 转义 markdown 控制字符, 换行压成空格避免插入新的块级结构
var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	"`", "\\`",
	"*", `\*`,
	"_", `\_`,
	"[", `\[`,
	"]", `\]`,
	"<", `\<`,
	">", `\>`,
	"#", `\#`,
	"|", `\|`,
	"!", `\!`,
	"\r\n", " ",
	"\n", " ",
	"\r", " ",
)

func (d Data) escapeMarkdown() Data {
	d.OrganizationName = markdownEscaper.Replace(d.OrganizationName)
	d.SignerName = markdownEscaper.Replace(d.SignerName)
	d.SignerEmail = markdownEscaper.Replace(d.SignerEmail)
	return d
}

// cleanPath 仓库内相对路径, 不允许越界
func cleanPath(p string) (string, error) {
	cleaned := path.Clean(strings.TrimSpace(p))
	if cleaned == "." || cleaned == "" || path.IsAbs(cleaned) || strings.HasPrefix(cleaned, "../") || cleaned == ".." {
		return "", fmt.Errorf("非法的输出路径: %q", p)
	}
	return cleaned, nil
}
