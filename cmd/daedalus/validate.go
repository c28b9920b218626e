package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wehubfusion/Daedalus/pkg/entity"
)

// validateCmd checks workflow files without running them.
var validateCmd = &cobra.Command{
	Use:   "validate <workflow-file>...",
	Short: "Check workflows without executing them",
	Long: `Load each workflow, resolve its structural children and validate every
component. Problems are listed per component; nothing is executed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		var failed []string
		for _, file := range args {
			problems, count, err := validateWorkflow(file)
			if err != nil {
				printf("invalid  %s: %v\n", file, err)
				failed = append(failed, file)
				continue
			}
			if len(problems) > 0 {
				printf("invalid  %s\n", file)
				for _, p := range problems {
					printf("  %s\n", p)
				}
				failed = append(failed, file)
				continue
			}
			printf("ok       %s (%d components)\n", file, count)
		}
		if len(failed) > 0 {
			return fmt.Errorf("%d of %d workflows are invalid", len(failed), len(args))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

// validateWorkflow returns one line per invalid enabled component.
func validateWorkflow(file string) ([]string, int, error) {
	root, err := loadWorkflow(file)
	if err != nil {
		return nil, 0, err
	}
	if root == nil {
		return nil, 0, errors.New("workflow has no root")
	}
	entity.ResolveAll(root)

	var problems []string
	entity.Walk(root, func(c entity.Component) bool {
		if !c.IsEnabled() {
			return false
		}
		if err := c.Validate(); err != nil {
			problems = append(problems, fmt.Sprintf("%s (%s): %v", entity.PathOf(c), c.Kind(), err))
		}
		return true
	})
	return problems, countComponents(root), nil
}
