package main

import (
	"github.com/spf13/cobra"
)

var convertCmd = &cobra.Command{
	Use:   "convert <type> [file]",
	Short: "Convert a payload between wire formats",
	Long: `Decode a payload as a message of the given type, validate it and
pack it again in another wire format.

Examples:
  wirectl convert shop.Order order.json --to yaml
  cat order.yaml | wirectl convert shop.Order --from yaml --to json`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runConvert,
}

var (
	convertFrom string
	convertTo   string
)

func init() {
	rootCmd.AddCommand(convertCmd)
	convertCmd.Flags().StringVar(&convertFrom, "from", "", "input format (default: from file extension, then codec.format)")
	convertCmd.Flags().StringVar(&convertTo, "to", "", "output format (default: codec.format)")
}

func runConvert(cmd *cobra.Command, args []string) error {
	env, err := setup(cmd)
	if err != nil {
		return err
	}

	to, err := env.format(convertTo, "")
	if err != nil {
		return err
	}

	t, m, err := env.decode(cmd, args, convertFrom)
	if err != nil {
		return err
	}

	data, err := to.Pack(t, m)
	if err != nil {
		return err
	}

	return writePayload(cmd, data)
}
