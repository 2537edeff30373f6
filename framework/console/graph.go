package console

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/km-arc/go-tenancy/framework/container"
)

func newGraphCommand(o *rootOptions) *cobra.Command {
	var (
		tenant string
		output string
	)
	cmd := &cobra.Command{
		Use:   "graph <service>",
		Short: "Print the call-site graph of a service without constructing it",
		Example: `  tenancy graph '*app.Tenant' --tenant acme
  tenancy graph app.Greeter --tenant globex -o yaml`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := o.application()
			if err != nil {
				return err
			}
			c, err := a.Build()
			if err != nil {
				return err
			}
			defer a.Close(context.Background())

			t, ok := c.ServiceType(args[0])
			if !ok {
				return fmt.Errorf("unknown service %q, see the services command", args[0])
			}
			var cs *container.CallSite
			if tenant != "" {
				cs, err = c.TenantCallSite(tenant, t)
			} else {
				cs, err = c.CallSite(t)
			}
			if err != nil {
				return err
			}
			if cs == nil {
				return fmt.Errorf("%s is not visible from the %s partition", args[0], partition(tenant))
			}

			out, err := render(container.DescribeCallSite(cs), output)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), highlight(args[0]))
			if err == nil {
				_, err = cmd.OutOrStdout().Write(out)
			}
			return err
		},
	}
	cmd.Flags().StringVar(&tenant, "tenant", "", "Tenant key to build the graph for (default shared)")
	cmd.Flags().StringVarP(&output, "output", "o", "yaml", "Output format. One of: (json | yaml)")
	return cmd
}

func render(record *container.CallSiteRecord, output string) ([]byte, error) {
	switch output {
	case "json":
		out, err := json.MarshalIndent(record, "", "  ")
		return append(out, '\n'), err
	case "yaml":
		return yaml.Marshal(record)
	}
	return nil, fmt.Errorf("unknown output format %q", output)
}

func partition(tenant string) string {
	if tenant == "" {
		return "shared"
	}
	return "tenant " + tenant
}
