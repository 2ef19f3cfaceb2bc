package tree

import (
	"strings"

	"github.com/bcnelson/workspace-tree/internal/domain"
)

// IsAuthorized maps a logical permission onto n's capability flags. ANY is
// always granted; unknown permissions never are.
func (t *Tree) IsAuthorized(n *Node, p domain.Permission) bool {
	return n.Capabilities().Granted(p)
}

// IsWorkspaceWizardEnabled reports whether wizardID is listed in the
// enabled-wizards of n's owning library.
func (t *Tree) IsWorkspaceWizardEnabled(n *Node, wizardID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	lib := t.owningLibraryLocked(n)
	if lib == nil || wizardID == "" {
		return false
	}
	for _, w := range strings.Split(lib.enabledWizards, ",") {
		if strings.TrimSpace(w) == wizardID {
			return true
		}
	}
	return false
}
