// Package research implements the deep-research core: query and
// quality utilities, the knowledge-gap analyzer, the research tree,
// the linear and tree exploration runners, and the auto runner that
// selects between them.
package research

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/delverhq/delver/pkg/models"
)

var (
	codeFenceRe = regexp.MustCompile("(?s)```[a-zA-Z]*\\n?(.*?)```")
	enoughRe    = regexp.MustCompile(`回答.*[Yy]es`)
)

// ParseList extracts a list of strings from model output. Accepted
// shapes: a fenced block containing a JSON array, a bare bracketed
// JSON array, or a plain newline-separated list. Input is data, never
// code: nothing here evaluates anything.
func ParseList(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	candidate := text
	if m := codeFenceRe.FindStringSubmatch(text); m != nil {
		candidate = strings.TrimSpace(m[1])
	}

	if start := strings.Index(candidate, "["); start >= 0 {
		if end := strings.LastIndex(candidate, "]"); end > start {
			var items []any
			if err := json.Unmarshal([]byte(candidate[start:end+1]), &items); err == nil {
				out := make([]string, 0, len(items))
				for _, item := range items {
					switch v := item.(type) {
					case string:
						if s := strings.TrimSpace(v); s != "" {
							out = append(out, s)
						}
					default:
						out = append(out, strings.TrimSpace(fmt.Sprintf("%v", v)))
					}
				}
				if len(out) > 0 {
					return out
				}
			}
		}
	}

	// Newline fallback: strip bullets and numbering.
	var out []string
	for _, line := range strings.Split(candidate, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*• \t")
		line = trimListNumber(line)
		line = strings.Trim(line, `"'`)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

var listNumberRe = regexp.MustCompile(`^\d+[.)]\s*`)

func trimListNumber(line string) string {
	return listNumberRe.ReplaceAllString(line, "")
}

// ExtractJSON pulls a JSON object out of model output and unmarshals
// it into out. Tolerant of code fences and surrounding prose: the
// substring between the first '{' and the last '}' is tried when the
// whole text fails.
func ExtractJSON(text string, out any) error {
	text = strings.TrimSpace(text)
	if m := codeFenceRe.FindStringSubmatch(text); m != nil {
		text = strings.TrimSpace(m[1])
	}
	if json.Unmarshal([]byte(text), out) == nil {
		return nil
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return fmt.Errorf("no JSON object found in model output")
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), out); err != nil {
		return fmt.Errorf("parse model JSON: %w", err)
	}
	return nil
}

// ExtractJSONArray pulls a JSON array out of model output and
// unmarshals it into out, with the same tolerance as ExtractJSON but
// bracketed instead of braced.
func ExtractJSONArray(text string, out any) error {
	text = strings.TrimSpace(text)
	if m := codeFenceRe.FindStringSubmatch(text); m != nil {
		text = strings.TrimSpace(m[1])
	}
	if json.Unmarshal([]byte(text), out) == nil {
		return nil
	}
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end <= start {
		return fmt.Errorf("no JSON array found in model output")
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), out); err != nil {
		return fmt.Errorf("parse model JSON: %w", err)
	}
	return nil
}

// ParseEnough reads the critic's sufficiency verdict: a line matching
// 回答…yes means the accumulated knowledge answers the topic.
func ParseEnough(response string) bool {
	return enoughRe.MatchString(response)
}

// ExtractSummary returns the text after the 总结 marker when present,
// otherwise the whole response.
func ExtractSummary(response string) string {
	if idx := strings.Index(response, "总结"); idx >= 0 {
		rest := response[idx+len("总结"):]
		rest = strings.TrimLeft(rest, ":： \n")
		if rest != "" {
			return strings.TrimSpace(rest)
		}
	}
	return strings.TrimSpace(response)
}

// FormatResults renders results as a numbered fixed-field table for
// prompt consumption.
func FormatResults(results []models.SearchResult) string {
	if len(results) == 0 {
		return "(no results)"
	}
	var sb strings.Builder
	for i, r := range results {
		date := r.PublishedDate
		if date == "" {
			date = "unknown"
		}
		fmt.Fprintf(&sb, "[%d] %s\n    date: %s  score: %.2f\n    url: %s\n    snippet: %s\n",
			i+1, r.Title, date, r.Score, r.URL, trimTo(r.Snippet, 300))
		if r.RawExcerpt != "" {
			fmt.Fprintf(&sb, "    excerpt: %s\n", trimTo(r.RawExcerpt, 500))
		}
	}
	return sb.String()
}

func trimTo(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
