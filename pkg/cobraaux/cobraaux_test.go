package cobraaux

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"
)

func TestRegisterCommandChainsPreRun(t *testing.T) {
	var calls []string
	parent := &cobra.Command{
		Use: "parent",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			calls = append(calls, "parent")
			return nil
		},
	}
	child := &cobra.Command{
		Use: "child",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			calls = append(calls, "child")
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			calls = append(calls, "run")
			return nil
		},
	}
	RegisterCommand(parent, child)

	parent.SetArgs([]string{"child"})
	require.NoError(t, parent.Execute())
	require.Equal(t, []string{"parent", "child", "run"}, calls)
}

func TestRegisterCommandInheritsParentPreRun(t *testing.T) {
	parentErr := xerrors.New("bad flags")
	parent := &cobra.Command{
		Use:           "parent",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return parentErr
		},
	}
	ran := false
	child := &cobra.Command{
		Use: "child",
		RunE: func(cmd *cobra.Command, args []string) error {
			ran = true
			return nil
		},
	}
	RegisterCommand(parent, child)

	parent.SetArgs([]string{"child"})
	err := parent.Execute()
	require.ErrorIs(t, err, parentErr)
	require.False(t, ran)
}
