package console

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/rodaine/table"
	"github.com/spf13/cobra"

	"github.com/km-arc/go-tenancy/framework/routing"
)

func newServicesCommand(o *rootOptions) *cobra.Command {
	var tenancy string
	cmd := &cobra.Command{
		Use:   "services",
		Short: "List registered services with their lifetime, tenancy and provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if tenancy != "" && tenancy != "shared" && tenancy != "tenanted" {
				return fmt.Errorf("--tenancy must be shared or tenanted, got %q", tenancy)
			}
			a, err := o.application()
			if err != nil {
				return err
			}
			c, err := a.Build()
			if err != nil {
				return err
			}
			defer a.Close(context.Background())

			headerFmt := color.New(color.FgGreen, color.Bold).SprintfFunc()
			columnFmt := color.New(color.FgYellow).SprintfFunc()
			tbl := table.New("Service", "Lifetime", "Tenancy", "Source", "Slot", "Provider").
				WithWriter(cmd.OutOrStdout()).
				WithHeaderFormatter(headerFmt).
				WithFirstColumnFormatter(columnFmt)

			regs := c.Registrations()
			for i, info := range routing.Describe(c) {
				if tenancy != "" && info.Tenancy != tenancy {
					continue
				}
				origin := a.Providers.Origin(regs[i].Descriptor)
				if origin == "" {
					origin = "-"
				}
				tbl.AddRow(info.Service, info.Lifetime, info.Tenancy, info.Source, info.Slot, origin)
			}
			tbl.Print()
			return nil
		},
	}
	cmd.Flags().StringVar(&tenancy, "tenancy", "", "Only list shared or tenanted services")
	return cmd
}

func newRoutesCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "List HTTP routes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := o.application()
			if err != nil {
				return err
			}
			router, err := a.Router()
			if err != nil {
				return err
			}
			defer a.Close(context.Background())

			routes, err := router.Routes()
			if err != nil {
				return err
			}
			tbl := table.New("Method", "Pattern").
				WithWriter(cmd.OutOrStdout()).
				WithHeaderFormatter(color.New(color.FgGreen, color.Bold).SprintfFunc())
			for _, r := range routes {
				tbl.AddRow(r.Method, r.Pattern)
			}
			tbl.Print()
			return nil
		},
	}
}
