package cobraaux

import (
	"github.com/spf13/cobra"
	"golang.org/x/xerrors"
)

// RegisterCommand adds child to parent so that the parent's PersistentPreRunE runs before the child's own.
// Cobra only runs the closest persistent pre-run hook otherwise.
func RegisterCommand(parent, child *cobra.Command) {
	parentPreRun := parent.PersistentPreRunE
	childPreRun := child.PersistentPreRunE
	if childPreRun == nil && child.PersistentPreRun != nil {
		plain := child.PersistentPreRun
		childPreRun = func(cmd *cobra.Command, args []string) error {
			plain(cmd, args)
			return nil
		}
	}
	switch {
	case childPreRun != nil:
		child.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
			if parentPreRun != nil {
				if err := parentPreRun(cmd, args); err != nil {
					return xerrors.Errorf("cannot process parent PersistentPreRunE: %w", err)
				}
			}
			return childPreRun(cmd, args)
		}
	case parentPreRun != nil:
		child.PersistentPreRunE = parentPreRun
	}
	parent.AddCommand(child)
}
