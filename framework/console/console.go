// Package console is the artisan-style command line of an application:
//
//	tenancy serve               start the HTTP server
//	tenancy services            list registered services
//	tenancy routes              list HTTP routes
//	tenancy graph <service>     print the call-site graph of a service
package console

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/km-arc/go-tenancy/framework/app"
)

// Kernel creates the application a command runs against.
type Kernel func(envFiles []string) (*app.Application, error)

type rootOptions struct {
	envFiles []string
	kernel   Kernel
}

func (o *rootOptions) application() (*app.Application, error) {
	return o.kernel(o.envFiles)
}

// highlight colors headings the way the rest of the CLI output is colored.
var highlight = color.New(color.FgCyan, color.Bold).SprintFunc()

// NewRootCommand assembles the command tree around kernel.
func NewRootCommand(kernel Kernel) *cobra.Command {
	o := &rootOptions{kernel: kernel}
	cmd := &cobra.Command{
		Use:           "tenancy",
		Short:         "Multi-tenant service container and HTTP kernel",
		SilenceUsage:  true,
		SilenceErrors: true,
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
		},
	}
	cmd.CompletionOptions.DisableDefaultCmd = true
	cmd.PersistentFlags().StringSliceVar(&o.envFiles, "env-file", nil, "Environment files to load (default .env)")

	cmd.AddCommand(
		newServeCommand(o),
		newServicesCommand(o),
		newRoutesCommand(o),
		newGraphCommand(o),
	)
	setUsageTemplate(cmd)
	return cmd
}

func setUsageTemplate(cmd *cobra.Command) {
	cobra.AddTemplateFunc("StyleHeading", highlight)
	cmd.SetUsageTemplate(strings.NewReplacer(
		`Usage:`, `{{StyleHeading "Usage:"}}`,
		`Available Commands:`, `{{StyleHeading "Available Commands:"}}`,
		`Flags:`, `{{StyleHeading "Options:"}}`,
		`Global Flags:`, `{{StyleHeading "Global Options:"}}`,
	).Replace(cmd.UsageTemplate()))
}

// exactArgs shows usage when the argument count is wrong.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) == n {
			return nil
		}
		_ = cmd.Usage()
		return fmt.Errorf("requires exactly %d argument(s), got %d", n, len(args))
	}
}
