package render

import (
	"bytes"
	"context"
	"html"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/turtacn/KeyIP-Analytics/internal/domain/report"
	"github.com/turtacn/KeyIP-Analytics/pkg/errors"
)

const reportCSS = `body{font-family:"Noto Sans","Noto Sans CJK JP","Hiragino Sans",sans-serif;color:#1c1917;max-width:1000px;margin:0 auto;padding:1rem;}` +
	`h1{border-bottom:2px solid #1e3a8a;padding-bottom:.3rem;}h2{color:#1e3a8a;margin-top:1.6rem;}h3{font-size:1rem;}` +
	`table{width:100%;border-collapse:collapse;font-size:.85rem;margin:.6rem 0;}` +
	`th,td{border:1px solid #a8a29e;padding:.3rem .45rem;text-align:left;vertical-align:top;}` +
	`thead th{background:#f1f5f9;}` +
	`html,body,*{-webkit-print-color-adjust:exact;print-color-adjust:exact;}` +
	`@media print{h2{break-after:avoid;}table{break-inside:avoid;}}`

// HTML renders a standalone HTML document from the Markdown rendering.
type HTML struct {
	md       *Markdown
	markdown goldmark.Markdown
}

// NewHTML returns the HTML renderer.
func NewHTML() *HTML {
	return &HTML{
		md:       NewMarkdown(),
		markdown: goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

func (*HTML) Format() report.Format { return report.FormatHTML }

func (h *HTML) Render(ctx context.Context, r *report.Report) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.FromContext(err)
	}
	var body bytes.Buffer
	if err := h.markdown.Convert([]byte(h.md.String(r)), &body); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "markdown convert")
	}

	var doc bytes.Buffer
	doc.WriteString("<!doctype html><html><head><meta charset=\"utf-8\"><title>")
	doc.WriteString(html.EscapeString(r.Title))
	doc.WriteString("</title><style>")
	doc.WriteString(reportCSS)
	doc.WriteString("</style></head><body><article class=\"report\" data-report-id=\"")
	doc.WriteString(html.EscapeString(r.ID))
	doc.WriteString("\">")
	doc.Write(body.Bytes())
	doc.WriteString("</article></body></html>")
	return doc.Bytes(), nil
}
