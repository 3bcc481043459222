package jira

import (
	"strconv"
	"strings"
)

// DescriptionToPlainText flattens a v3 description, either an ADF document or a
// plain string, into markdown-ish text.
func DescriptionToPlainText(v any) string {
	switch d := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(d)
	case map[string]any:
		var b strings.Builder
		writeNode(&b, d, "")
		return strings.TrimSpace(collapseBlankLines(b.String()))
	default:
		return ""
	}
}

func writeNode(b *strings.Builder, node map[string]any, indent string) {
	nodeType, _ := node["type"].(string)
	switch nodeType {
	case "text":
		text, _ := node["text"].(string)
		b.WriteString(text)
	case "hardBreak":
		b.WriteString("\n" + indent)
	case "mention", "emoji":
		if attrs, ok := node["attrs"].(map[string]any); ok {
			text, _ := attrs["text"].(string)
			b.WriteString(text)
		}
	case "paragraph", "heading":
		b.WriteString(indent)
		writeChildren(b, node, indent)
		b.WriteString("\n\n")
	case "codeBlock":
		lang := ""
		if attrs, ok := node["attrs"].(map[string]any); ok {
			lang, _ = attrs["language"].(string)
		}
		b.WriteString("```" + lang + "\n")
		writeChildren(b, node, "")
		b.WriteString("\n```\n\n")
	case "bulletList", "orderedList":
		for i, item := range children(node) {
			marker := "- "
			if nodeType == "orderedList" {
				marker = strconv.Itoa(i+1) + ". "
			}
			b.WriteString(indent + marker)
			writeListItem(b, item, indent+"  ")
		}
		b.WriteString("\n")
	default:
		writeChildren(b, node, indent)
	}
}

// writeListItem renders the first paragraph inline with the marker and nests the rest
func writeListItem(b *strings.Builder, item map[string]any, indent string) {
	for i, child := range children(item) {
		childType, _ := child["type"].(string)
		if i == 0 && childType == "paragraph" {
			writeChildren(b, child, indent)
			b.WriteString("\n")
			continue
		}
		writeNode(b, child, indent)
	}
}

func writeChildren(b *strings.Builder, node map[string]any, indent string) {
	for _, child := range children(node) {
		writeNode(b, child, indent)
	}
}

func children(node map[string]any) []map[string]any {
	raw, _ := node["content"].([]any)
	out := make([]map[string]any, 0, len(raw))
	for _, c := range raw {
		if m, ok := c.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimRight(line, " ")
		if line == "" {
			if blank {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
