package cmd

import (
	"strings"

	"github.com/oakwood-commons/kvedit/internal/formatter"
	"github.com/oakwood-commons/kvedit/pkg/session"
)

// renderNode prints the read-only view of the session's node.
func renderNode(sess *session.Session, styles formatter.Styles) string {
	var b strings.Builder
	b.WriteString(styles.Section("Content", sess.DisplayText(), styles.Value))
	b.WriteString("\n\n")
	b.WriteString(styles.Section("JSON Path", sess.PathText(), styles.Path))
	return b.String()
}
