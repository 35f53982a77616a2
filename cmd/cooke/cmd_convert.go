package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"

	"github.com/ahrav/go-cooke/infrastructure/projectio"
	"github.com/ahrav/go-cooke/internal/domain"
)

type convertFlags struct {
	items     string
	separator string
	skipRows  int
}

func newConvertCmd(_ *app) *cobra.Command {
	var flags convertFlags
	cmd := &cobra.Command{
		Use:   "convert <input> <output>",
		Short: "Convert between JSON, Excalibur and CSV project files",
		Long: "convert reads a .json, .dtt or .csv project and writes it as .json or .dtt.\n" +
			"A .dtt file is read and written together with its .rls file. A .csv input\n" +
			"holds the assessments and needs --items for the item file. Legacy JSON\n" +
			"files are written in the current version.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(cmd, &flags, args[0], args[1])
		},
	}
	f := cmd.Flags()
	f.StringVar(&flags.items, "items", "", "Items CSV file, for a .csv input")
	f.StringVar(&flags.separator, "sep", ",", "Column separator of the CSV files")
	f.IntVar(&flags.skipRows, "skip-rows", 0, "Lines to skip before the CSV headers")
	return cmd
}

func runConvert(cmd *cobra.Command, flags *convertFlags, in, out string) error {
	var (
		p   *domain.Project
		err error
	)
	if cases.Fold().String(filepath.Ext(in)) == ".csv" {
		if flags.items == "" {
			return errors.New("a .csv input needs --items")
		}
		sep := []rune(flags.separator)
		if len(sep) != 1 {
			return fmt.Errorf("--sep must be a single character, got %q", flags.separator)
		}
		p, err = projectio.LoadCSV(in, flags.items, projectio.CSVOptions{
			Separator:          sep[0],
			SkipAssessmentRows: flags.skipRows,
			SkipItemRows:       flags.skipRows,
		})
	} else {
		p, err = projectio.LoadFile(in)
	}
	if err != nil {
		return err
	}

	if err := projectio.SaveFile(out, p); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d experts and %d items to %s\n", len(p.ExpertIDs(domain.RoleActual)), p.NumItems(), out)
	return nil
}
