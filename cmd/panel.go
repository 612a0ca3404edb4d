package cmd

import (
	"context"

	tea "charm.land/bubbletea/v2"

	"github.com/oakwood-commons/kvedit/internal/formatter"
	"github.com/oakwood-commons/kvedit/internal/ui/panel"
	"github.com/oakwood-commons/kvedit/pkg/document"
	"github.com/oakwood-commons/kvedit/pkg/node"
	"github.com/oakwood-commons/kvedit/pkg/session"
	"github.com/oakwood-commons/kvedit/pkg/settings"
)

// runPanel runs the interactive panel until it is closed or saved.
func runPanel(ctx context.Context, sess *session.Session, doc *document.Document, matches []node.Path, styles formatter.Styles) error {
	opts, cleanup := programOptions()
	defer cleanup()
	opts = append(opts, tea.WithContext(ctx))
	_, err := tea.NewProgram(newPanelModel(ctx, sess, doc, matches, styles), opts...).Run()
	return err
}

// newPanelModel builds the panel. Width and editing come from the run
// settings in ctx.
func newPanelModel(ctx context.Context, sess *session.Session, doc *document.Document, matches []node.Path, styles formatter.Styles) *panel.Model {
	run, ok := settings.FromContext(ctx)
	if !ok {
		run = settings.NewCliParams()
	}
	return panel.New(sess,
		panel.WithContext(ctx),
		panel.WithStyles(styles),
		panel.WithWidth(run.PanelWidth),
		panel.WithEditing(run.EditEnabled),
		panel.WithMatches(doc, matches),
	)
}
