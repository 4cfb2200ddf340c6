// Package render converts briefing markdown into email-safe HTML. Email
// clients ignore stylesheets, so styles are inlined onto each tag.
package render

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// inlineStyles maps HTML tags to the inline style applied for email clients.
var inlineStyles = map[string]string{
	"h1":         "font-size:24px;color:#1a1a2e;margin:24px 0 12px;font-weight:700;",
	"h2":         "font-size:20px;color:#1a1a2e;margin:28px 0 10px;font-weight:700;border-bottom:2px solid #e8e8f0;padding-bottom:6px;",
	"h3":         "font-size:16px;color:#2d2d44;margin:20px 0 8px;font-weight:600;",
	"p":          "font-size:15px;line-height:1.6;color:#333;margin:0 0 14px;",
	"a":          "color:#4a5dc7;text-decoration:none;",
	"strong":     "color:#1a1a2e;",
	"ul":         "margin:0 0 14px;padding-left:22px;",
	"li":         "font-size:15px;line-height:1.6;color:#333;margin-bottom:6px;",
	"blockquote": "border-left:3px solid #c5cae9;margin:0 0 14px;padding:4px 0 4px 14px;color:#555;font-style:italic;",
	"hr":         "border:none;border-top:1px solid #e8e8f0;margin:24px 0;",
}

var openTagRegex = regexp.MustCompile(`<(h1|h2|h3|p|a|strong|ul|li|blockquote|hr)(\s[^>]*)?>`)

// ToHTML renders briefing markdown into a full email HTML document.
func ToHTML(md string) string {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	opts := html.RendererOptions{Flags: html.CommonFlags | html.HrefTargetBlank}
	body := string(markdown.ToHTML([]byte(md), p, html.NewRenderer(opts)))

	return wrapEmail(applyInlineStyles(body))
}

// applyInlineStyles injects a style attribute into each known opening tag.
// Existing attributes (href, target) are preserved.
func applyInlineStyles(body string) string {
	return openTagRegex.ReplaceAllStringFunc(body, func(tag string) string {
		m := openTagRegex.FindStringSubmatch(tag)
		style, ok := inlineStyles[m[1]]
		if !ok {
			return tag
		}
		return fmt.Sprintf(`<%s%s style="%s">`, m[1], m[2], style)
	})
}

// wrapEmail wraps rendered content in a centered table layout, the only
// layout primitive email clients render consistently.
func wrapEmail(body string) string {
	var b strings.Builder
	b.WriteString(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><meta name="viewport" content="width=device-width, initial-scale=1.0"></head>
<body style="margin:0;padding:0;background-color:#f4f4f8;">
<table role="presentation" width="100%" cellpadding="0" cellspacing="0" style="background-color:#f4f4f8;">
<tr><td align="center" style="padding:24px 12px;">
<table role="presentation" width="640" cellpadding="0" cellspacing="0" style="max-width:640px;width:100%;background-color:#ffffff;border-radius:8px;">
<tr><td style="padding:32px 36px;font-family:-apple-system,BlinkMacSystemFont,'Segoe UI',Roboto,Helvetica,Arial,sans-serif;">
`)
	b.WriteString(body)
	b.WriteString(`
</td></tr>
</table>
</td></tr>
</table>
</body>
</html>
`)
	return b.String()
}
