package main

import (
	"github.com/spf13/cobra"

	"github.com/artpar/typedwire/core/formatter"
	"github.com/artpar/typedwire/core/message"
	"github.com/artpar/typedwire/core/validation"
)

var typesCmd = &cobra.Command{
	Use:   "types",
	Short: "List message types",
	Long: `List the message types declared in the schema directories.

Examples:
  wirectl types
  wirectl types -o json
  wirectl types show shop.Order`,
	Args: cobra.NoArgs,
	RunE: runTypesList,
}

var typesShowCmd = &cobra.Command{
	Use:   "show <type>",
	Short: "Show the fields of a message type",
	Args:  cobra.ExactArgs(1),
	RunE:  runTypesShow,
}

var (
	typesTable  = formatter.Table{Name: "types", Columns: []string{"name", "fields", "bases"}}
	fieldsTable = formatter.Table{Name: "fields", Columns: []string{"name", "wire_name", "required", "default", "descriptor"}}
)

func init() {
	rootCmd.AddCommand(typesCmd)
	typesCmd.AddCommand(typesShowCmd)
}

func runTypesList(cmd *cobra.Command, args []string) error {
	env, err := setup(cmd)
	if err != nil {
		return err
	}
	out, err := printer()
	if err != nil {
		return err
	}

	types := env.types.Types()
	rows := make([]map[string]any, len(types))
	for i, t := range types {
		rows[i] = map[string]any{
			"name":   t.TypeName(),
			"fields": t.NumFields(),
			"bases":  baseNames(t),
		}
	}
	return out.FormatList(cmd.OutOrStdout(), typesTable, rows, formatter.FormatOptions{})
}

func runTypesShow(cmd *cobra.Command, args []string) error {
	env, err := setup(cmd)
	if err != nil {
		return err
	}
	out, err := printer()
	if err != nil {
		return err
	}

	t, err := env.lookup(args[0])
	if err != nil {
		return err
	}

	rows := make([]map[string]any, 0, t.NumFields())
	for _, d := range t.Fields() {
		rows = append(rows, map[string]any{
			"name":       d.Name(),
			"wire_name":  d.WireName(),
			"required":   d.IsRequired(),
			"default":    validation.Repr(d.Default()),
			"descriptor": d.String(),
		})
	}
	return out.FormatList(cmd.OutOrStdout(), fieldsTable, rows, formatter.FormatOptions{})
}

func baseNames(t *message.Type) []string {
	names := make([]string, 0, len(t.Bases()))
	for _, b := range t.Bases() {
		names = append(names, b.TypeName())
	}
	return names
}
