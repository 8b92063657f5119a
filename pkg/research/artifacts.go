package research

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/nguyenthenguyen/docx"

	"github.com/delverhq/delver/pkg/models"
)

const maxFilenameLen = 80

// SafeFilename builds the run-record file name from the topic and
// timestamp: unsafe characters become underscores and the whole name is
// capped at 80 characters including the extension.
func SafeFilename(topic string, now time.Time, ext string) string {
	var sb strings.Builder
	for _, r := range topic {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			sb.WriteRune(r)
		case r == '-' || r == '_':
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
	}
	safe := strings.Trim(sb.String(), "_")
	if safe == "" {
		safe = "research"
	}

	suffix := fmt.Sprintf("_%s%s", now.Format("20060102_150405"), ext)
	budget := maxFilenameLen - len(suffix)
	if len(safe) > budget {
		safe = trimToRunes(safe, budget)
	}
	return safe + suffix
}

// trimToRunes cuts at a rune boundary so multi-byte topics stay valid.
func trimToRunes(s string, maxBytes int) string {
	for len(s) > maxBytes {
		_, size := utf8.DecodeLastRuneInString(s)
		if size == 0 {
			return s[:maxBytes]
		}
		s = s[:len(s)-size]
	}
	return s
}

// SaveRunRecord writes the append-only run document into dir, creating
// the directory when needed, and returns the written path.
func SaveRunRecord(dir string, record *models.RunRecord, now time.Time) (string, error) {
	if dir == "" {
		dir = "research_runs"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create save dir: %w", err)
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal run record: %w", err)
	}
	path := filepath.Join(dir, SafeFilename(record.Topic, now, ".json"))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write run record: %w", err)
	}
	return path, nil
}

// ExportReportDocx renders the final report through a user-supplied
// .docx template. The template carries {{topic}} and {{report}}
// placeholders; the export lands next to the JSON record.
func ExportReportDocx(templatePath, dir, topic, report string, now time.Time) (string, error) {
	tmpl, err := docx.ReadDocxFile(templatePath)
	if err != nil {
		return "", fmt.Errorf("read docx template: %w", err)
	}
	defer tmpl.Close()

	doc := tmpl.Editable()
	if err := doc.Replace("{{topic}}", topic, -1); err != nil {
		return "", fmt.Errorf("render docx topic: %w", err)
	}
	if err := doc.Replace("{{report}}", report, -1); err != nil {
		return "", fmt.Errorf("render docx report: %w", err)
	}

	if dir == "" {
		dir = "research_runs"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create save dir: %w", err)
	}
	path := filepath.Join(dir, SafeFilename(topic, now, ".docx"))
	if err := doc.WriteToFile(path); err != nil {
		return "", fmt.Errorf("write docx report: %w", err)
	}
	return path, nil
}
