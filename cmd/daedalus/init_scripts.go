package main

import (
	"github.com/spf13/cobra"

	"github.com/wehubfusion/Daedalus/pkg/scriptpath"
	"github.com/wehubfusion/Daedalus/pkg/serialization"
)

var (
	createScripts bool
	dryRun        bool
)

// initScriptsCmd assigns script files to unset script-capable properties.
var initScriptsCmd = &cobra.Command{
	Use:   "init-scripts <workflow-file>",
	Short: "Assign script files to scriptable properties",
	Long: `Give every script-capable property that has no script yet a unique file
under the scripts directory, scoped by the tags of its enclosing entities.
The workflow file is rewritten with the assigned paths.`,
	Args: cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		file := args[0]
		root, err := loadWorkflow(file)
		if err != nil {
			return err
		}
		paths, err := pathProvider()
		if err != nil {
			return err
		}

		initializer := scriptpath.NewInitializer(paths,
			scriptpath.WithCreateFiles(createScripts && !dryRun),
			scriptpath.WithLogger(logger.Named("scriptpath")))
		assigned, err := initializer.Initialize(root)
		if err != nil {
			return err
		}
		for _, a := range assigned {
			printf("%s.%s -> %s\n", a.Component, a.Property, a.Path)
		}
		if len(assigned) == 0 {
			printf("no unassigned script properties in %s\n", file)
			return nil
		}
		if dryRun {
			return nil
		}
		return serialization.SaveFile(registry, file, root, logger.Named("serialization"))
	},
}

func init() {
	rootCmd.AddCommand(initScriptsCmd)

	initScriptsCmd.Flags().BoolVar(&createScripts, "create", true, "create an empty file for each assigned script")
	initScriptsCmd.Flags().BoolVar(&dryRun, "dry-run", false, "print assignments without writing anything")
}
