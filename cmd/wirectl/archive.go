package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/artpar/typedwire/core/formatter"
	"github.com/artpar/typedwire/core/storage"
)

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Manage archived messages",
	Long: `Store validated messages in the SQLite archive and read them back.

Examples:
  wirectl archive put shop.Order order.json
  wirectl archive list shop.Order --limit 10
  wirectl archive get shop.Order 0190c3a8-...
  wirectl archive delete 0190c3a8-...`,
}

var archivePutCmd = &cobra.Command{
	Use:   "put <type> [file]",
	Short: "Validate a payload and archive it",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runArchivePut,
}

var archiveGetCmd = &cobra.Command{
	Use:   "get <type> <id>",
	Short: "Print an archived message",
	Args:  cobra.ExactArgs(2),
	RunE:  runArchiveGet,
}

var archiveListCmd = &cobra.Command{
	Use:   "list <type>",
	Short: "List archived messages of a type",
	Args:  cobra.ExactArgs(1),
	RunE:  runArchiveList,
}

var archiveDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an archived message",
	Args:  cobra.ExactArgs(1),
	RunE:  runArchiveDelete,
}

var (
	archiveFormat string
	archiveTo     string
	archiveLimit  int
	archiveOffset int
)

var recordsTable = formatter.Table{Name: "records", Columns: []string{"id", "type_name", "format", "bytes", "created_at"}}

func init() {
	rootCmd.AddCommand(archiveCmd)

	archiveCmd.AddCommand(archivePutCmd)
	archiveCmd.AddCommand(archiveGetCmd)
	archiveCmd.AddCommand(archiveListCmd)
	archiveCmd.AddCommand(archiveDeleteCmd)

	archivePutCmd.Flags().StringVarP(&archiveFormat, "format", "f", "", "payload format (default: from file extension, then codec.format)")
	archiveGetCmd.Flags().StringVar(&archiveTo, "to", "", "output format (default: codec.format)")
	archiveListCmd.Flags().IntVar(&archiveLimit, "limit", 0, "maximum number of records (0 = all)")
	archiveListCmd.Flags().IntVar(&archiveOffset, "offset", 0, "number of records to skip")
}

// openArchive opens the configured archive. Records are packed with the
// archive format and read back with whatever format they were stored in.
func (e *environment) openArchive(ctx context.Context) (*storage.SQLiteArchive, error) {
	f, err := e.format(e.cfg.Archive.Format, "")
	if err != nil {
		return nil, err
	}

	archive, err := storage.NewSQLiteArchive(ctx, e.cfg.Archive.DSN,
		storage.WithFormat(f),
		storage.WithFormats(e.formats),
		storage.WithLogger(e.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	return archive, nil
}

func runArchivePut(cmd *cobra.Command, args []string) error {
	env, err := setup(cmd)
	if err != nil {
		return err
	}

	_, m, err := env.decode(cmd, args, archiveFormat)
	if err != nil {
		return err
	}

	archive, err := env.openArchive(cmd.Context())
	if err != nil {
		return err
	}
	defer archive.Close()

	id, err := archive.Put(cmd.Context(), m)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), id)
	return nil
}

func runArchiveGet(cmd *cobra.Command, args []string) error {
	env, err := setup(cmd)
	if err != nil {
		return err
	}

	t, err := env.lookup(args[0])
	if err != nil {
		return err
	}
	to, err := env.format(archiveTo, "")
	if err != nil {
		return err
	}

	archive, err := env.openArchive(cmd.Context())
	if err != nil {
		return err
	}
	defer archive.Close()

	m, err := archive.Get(cmd.Context(), t, args[1])
	if err != nil {
		return err
	}

	data, err := to.Pack(t, m)
	if err != nil {
		return err
	}
	return writePayload(cmd, data)
}

func runArchiveList(cmd *cobra.Command, args []string) error {
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

	archive, err := env.openArchive(cmd.Context())
	if err != nil {
		return err
	}
	defer archive.Close()

	records, err := archive.List(cmd.Context(), t.TypeName(), storage.ListOptions{
		Limit:  archiveLimit,
		Offset: archiveOffset,
	})
	if err != nil {
		return err
	}

	rows := make([]map[string]any, len(records))
	for i, rec := range records {
		rows[i] = map[string]any{
			"id":         rec.ID,
			"type_name":  rec.TypeName,
			"format":     rec.Format,
			"bytes":      len(rec.Payload),
			"created_at": rec.CreatedAt,
		}
	}
	return out.FormatList(cmd.OutOrStdout(), recordsTable, rows, formatter.FormatOptions{})
}

func runArchiveDelete(cmd *cobra.Command, args []string) error {
	env, err := setup(cmd)
	if err != nil {
		return err
	}

	archive, err := env.openArchive(cmd.Context())
	if err != nil {
		return err
	}
	defer archive.Close()

	if err := archive.Delete(cmd.Context(), args[0]); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
	return nil
}

