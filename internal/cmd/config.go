package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Brownie44l1/httpd/internal/config"
)

var (
	styleTitle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	styleKey   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	styleValue = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	styleNone  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Faint(true)
	styleBox   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
)

func newConfigCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the resolved configuration",
		Long: `Print the configuration httpd would run with, after merging flags,
HTTPD_* environment variables, the config file and defaults.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.Load(v)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderConfig(c, v.ConfigFileUsed()))
			return nil
		},
	}
}

func renderConfig(c config.Config, file string) string {
	entries := c.Entries()

	width := 0
	for _, e := range entries {
		width = max(width, len(e.Key))
	}

	var b strings.Builder
	b.WriteString(styleTitle.Render("httpd configuration"))
	if file != "" {
		b.WriteString(styleNone.Render(" (" + file + ")"))
	}
	b.WriteString("\n")

	for _, e := range entries {
		value := styleValue.Render(e.Value)
		if e.Value == "(none)" {
			value = styleNone.Render(e.Value)
		}
		fmt.Fprintf(&b, "\n%s  %s", styleKey.Render(fmt.Sprintf("%-*s", width, e.Key)), value)
	}

	return styleBox.Render(b.String())
}
