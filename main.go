package main

import (
	"fmt"
	"os"

	"github.com/km-arc/go-tenancy/app"
	framework "github.com/km-arc/go-tenancy/framework/app"
	"github.com/km-arc/go-tenancy/framework/console"
)

func main() {
	root := console.NewRootCommand(func(envFiles []string) (*framework.Application, error) {
		a, err := framework.New(envFiles...)
		if err != nil {
			return nil, err
		}
		if err := a.Register(&app.GreetingProvider{}); err != nil {
			return nil, err
		}
		return a, nil
	})
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
