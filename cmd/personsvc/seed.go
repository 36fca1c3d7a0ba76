package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/R3E-Network/person_service/internal/app/runtime"
	"github.com/R3E-Network/person_service/internal/app/services/persons"
)

func seedCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert the sample person records and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := flags.load()
			if err != nil {
				return err
			}

			store, db, err := runtime.OpenStore(cmd.Context(), cfg.Database, log)
			if err != nil {
				return err
			}
			if db != nil {
				defer db.Close()
			}

			n, err := persons.New(store, log.Named("persons")).Seed(cmd.Context(), persons.SampleRecords()...)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "inserted %d of %d sample records\n", n, len(persons.SampleRecords()))
			return nil
		},
	}
}
