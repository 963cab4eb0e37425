package main

import (
	"fmt"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/tejashwikalptaru/lyra/internal/config"
)

func newConfigCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show every setting with its environment variable and current value",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			if used := c.loader.ConfigFileUsed(); used != "" {
				c.printf("Config file: %s\n\n", used)
			}

			v := c.loader.Viper()
			rows := lo.Map(config.Fields, func(f config.Field, _ int) []string {
				return []string{f.Key, f.Env(), fmt.Sprint(v.Get(f.Key)), fmt.Sprint(f.Value)}
			})
			c.printf("%s\n", c.styles.table([]string{"KEY", "ENV", "VALUE", "DEFAULT"}, rows, 1, 3))
			return nil
		},
	}
}
