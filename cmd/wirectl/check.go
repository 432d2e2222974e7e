package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/artpar/typedwire/core/message"
	"github.com/artpar/typedwire/core/validation"
	"github.com/artpar/typedwire/pkg/jsonapi"
)

var checkCmd = &cobra.Command{
	Use:   "check <type> [file]",
	Short: "Decode and validate a payload",
	Long: `Decode a payload as a message of the given type and validate it.

The payload is read from the file, or from standard input when the file is
omitted or "-". Failures are printed as a JSON:API error document.

Examples:
  wirectl check shop.Order order.json
  cat order.yaml | wirectl check shop.Order --format yaml`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runCheck,
}

var checkFormat string

// errCheckFailed is returned once the failure document has been printed.
var errCheckFailed = errors.New("check failed")

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().StringVarP(&checkFormat, "format", "f", "", "payload format (default: from file extension, then codec.format)")
}

func runCheck(cmd *cobra.Command, args []string) error {
	env, err := setup(cmd)
	if err != nil {
		return err
	}

	t, m, err := env.decode(cmd, args, checkFormat)
	if err != nil {
		if _, werr := jsonapi.WriteError(cmd.OutOrStdout(), err, true); werr != nil {
			return werr
		}
		return errCheckFailed
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: valid (%d fields set)\n", t.TypeName(), len(m.Fields()))
	return nil
}

// decode reads the payload of args[1], unpacks it as args[0] and validates
// the message.
func (e *environment) decode(cmd *cobra.Command, args []string, formatName string) (*message.Type, *message.Message, error) {
	t, err := e.lookup(args[0])
	if err != nil {
		return nil, nil, err
	}

	data, path, err := readPayload(cmd, args, 1)
	if err != nil {
		return nil, nil, err
	}

	from, err := e.format(formatName, path)
	if err != nil {
		return nil, nil, err
	}

	m, err := from.Unpack(t, data)
	if err != nil {
		e.logger.Debug().Err(err).Str("type", t.TypeName()).Str("format", from.Name()).Msg("payload rejected")
		return nil, nil, err
	}
	if err := validation.Validate(m); err != nil {
		return nil, nil, err
	}
	return t, m, nil
}
