package render

import (
	"strings"
	"testing"
)

func TestToHTML(t *testing.T) {
	md := `## AI Developments

Some narrative with a [link](https://example.com/post) and **bold** text.

- first bullet
- second bullet`

	out := ToHTML(md)

	if !strings.Contains(out, "<!DOCTYPE html>") {
		t.Error("output should be a full HTML document")
	}
	if !strings.Contains(out, "AI Developments") {
		t.Error("heading text lost")
	}
	if !strings.Contains(out, `href="https://example.com/post"`) {
		t.Error("link lost")
	}
	if !strings.Contains(out, `target="_blank"`) {
		t.Error("links should open in a new tab")
	}
	if !strings.Contains(out, "first bullet") {
		t.Error("list content lost")
	}
}

func TestToHTMLInlineStyles(t *testing.T) {
	out := ToHTML("## Heading\n\nParagraph text.")

	if !strings.Contains(out, `<h2 id="heading" style="`) && !strings.Contains(out, `<h2 style="`) {
		t.Errorf("h2 should carry an inline style, got:\n%s", out)
	}
	if !strings.Contains(out, `<p style="`) {
		t.Errorf("p should carry an inline style, got:\n%s", out)
	}
}

func TestApplyInlineStylesPreservesAttributes(t *testing.T) {
	in := `<a href="https://example.com" target="_blank">x</a>`
	out := applyInlineStyles(in)

	if !strings.Contains(out, `href="https://example.com"`) {
		t.Errorf("href lost: %q", out)
	}
	if !strings.Contains(out, `style="`) {
		t.Errorf("style not injected: %q", out)
	}
}

func TestApplyInlineStylesLeavesUnknownTags(t *testing.T) {
	in := `<table><tr><td>cell</td></tr></table>`
	if out := applyInlineStyles(in); out != in {
		t.Errorf("unknown tags should pass through, got %q", out)
	}
}
