package revision

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const maxSlugLen = 48

// Filename returns the canonical definition file name for the given
// revision id and message, e.g. "9f3a1c2b4d5e_add_users_table.sql".
func Filename(id, message string) string {
	slug := slugify(message)
	if len(slug) == 0 {
		return id + ".sql"
	}

	return id + "_" + slug + ".sql"
}

func slugify(message string) string {
	var b strings.Builder

	for _, r := range strings.ToLower(strings.TrimSpace(message)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}

	slug := strings.Trim(b.String(), "_")
	for strings.Contains(slug, "__") {
		slug = strings.ReplaceAll(slug, "__", "_")
	}

	if len(slug) > maxSlugLen {
		slug = strings.Trim(slug[:maxSlugLen], "_")
	}

	return slug
}

// Write renders d as a definition file under dir and returns its path.
//
// The target file must not already exist.
func Write(dir string, d *Definition) (string, error) {
	path := filepath.Join(dir, Filename(d.ID, d.Message))

	f, err := os.OpenFile(filepath.Clean(path), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create definition file: %w", err)
	}

	if _, err := f.WriteString(render(d)); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write definition file: %w", err)
	}

	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close definition file: %w", err)
	}

	return path, nil
}

func render(d *Definition) string {
	var b strings.Builder

	if len(d.Message) > 0 {
		fmt.Fprintf(&b, "%s %s\n", headerMessage, d.Message)
	}

	fmt.Fprintf(&b, "%s %s\n\n", headerDown, d.Down)

	b.WriteString(markerUp + "\n")

	if len(d.UpSQL) > 0 {
		b.WriteString(d.UpSQL + "\n")
	}

	b.WriteString("\n" + markerDown + "\n")

	if len(d.DownSQL) > 0 {
		b.WriteString(d.DownSQL + "\n")
	}

	return b.String()
}
