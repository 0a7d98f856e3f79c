package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/unveilai/unveil/internal/config"
	"github.com/unveilai/unveil/internal/utils"
)

const (
	initUse              = "init"
	initShortDescription = "write a default configuration file"
	initLongDescription  = "Write the default configuration to ./" + utils.ConfigFileName +
		", or to ~/" + utils.GlobalConfigDirectoryName + "/" + utils.GlobalConfigFileName + " with --global."

	globalFlagName        = "global"
	forceFlagName         = "force"
	globalFlagDescription = "write the global configuration"
	forceFlagDescription  = "overwrite an existing configuration file"

	configurationWrittenFormat = "Configuration written to %s\n"
)

func createInitCommand(app *application) *cobra.Command {
	var global bool
	var force bool

	initCommand := &cobra.Command{
		Use:   initUse,
		Short: initShortDescription,
		Long:  initLongDescription,
		Args:  cobra.NoArgs,
		// init must work even when the existing configuration cannot be loaded.
		PersistentPreRunE: func(command *cobra.Command, arguments []string) error {
			return nil
		},
		RunE: func(command *cobra.Command, arguments []string) error {
			target := config.InitTargetLocal
			if global {
				target = config.InitTargetGlobal
			}
			destinationPath, initError := config.InitializeConfiguration(config.InitOptions{
				Target:           target,
				Force:            force,
				WorkingDirectory: app.dependencies.WorkingDirectory,
			})
			if initError != nil {
				return initError
			}
			_, writeError := fmt.Fprintf(app.stdout(), configurationWrittenFormat, destinationPath)
			return writeError
		},
	}
	registerBooleanFlag(initCommand.Flags(), &global, globalFlagName, false, globalFlagDescription)
	registerBooleanFlag(initCommand.Flags(), &force, forceFlagName, false, forceFlagDescription)
	return initCommand
}
