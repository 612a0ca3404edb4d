package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/oakwood-commons/kvedit/pkg/session"
)

type fieldEdit struct {
	key  string
	text string
}

// parseSets splits key=value arguments. The value may contain '='.
func parseSets(sets []string) ([]fieldEdit, error) {
	edits := make([]fieldEdit, 0, len(sets))
	for _, s := range sets {
		key, text, ok := strings.Cut(s, "=")
		if !ok {
			return nil, fmt.Errorf("%q: expected key=value", s)
		}
		if key = strings.TrimSpace(key); key == "" {
			return nil, fmt.Errorf("%q: empty key", s)
		}
		edits = append(edits, fieldEdit{key: key, text: text})
	}
	return edits, nil
}

// applySets runs one edit session over the selected node and saves it.
func applySets(ctx context.Context, sess *session.Session, edits []fieldEdit) error {
	if !sess.BeginEdit() {
		return fmt.Errorf("node %s has no editable fields", sess.PathText())
	}
	for _, e := range edits {
		if err := sess.SetField(e.key, e.text); err != nil {
			sess.Cancel()
			if errors.Is(err, session.ErrInvalidField) {
				return fmt.Errorf("%w (editable: %s)", err, strings.Join(sess.WorkingFields().Keys(), ", "))
			}
			return err
		}
	}
	if err := sess.Save(ctx); err != nil {
		sess.Cancel()
		return fmt.Errorf("save %s: %w", sess.PathText(), err)
	}
	return nil
}
