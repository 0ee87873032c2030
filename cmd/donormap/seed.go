package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/vbonduro/donormap/internal/config"
	"github.com/vbonduro/donormap/internal/domain"
	"github.com/vbonduro/donormap/internal/logging"
	"github.com/vbonduro/donormap/internal/service"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load donors from a YAML fixture file into the configured store",
	RunE:  runSeed,
}

var seedArgs struct {
	file string
}

func init() {
	seedCmd.Flags().StringVarP(&seedArgs.file, "file", "f", "", "YAML file with a top-level donors list")
	_ = seedCmd.MarkFlagRequired("file")
}

// fixtures is the seed file layout.
type fixtures struct {
	Donors []*domain.Donor `yaml:"donors"`
}

func loadFixtures(r io.Reader) ([]*domain.Donor, error) {
	var f fixtures
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse fixtures: %w", err)
	}
	for i, d := range f.Donors {
		if d == nil {
			return nil, fmt.Errorf("donor %d is empty", i)
		}
		if d.Name == "" || d.BloodGroup == "" {
			return nil, fmt.Errorf("donor %d: name and bloodGroup are required", i)
		}
	}
	return f.Donors, nil
}

func runSeed(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger, cleanup, err := logging.New(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer cleanup()

	f, err := os.Open(seedArgs.file)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	donors, err := loadFixtures(f)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	s, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	n, err := service.NewDonorService(s, nil, logger).Import(ctx, donors)
	if err != nil {
		return fmt.Errorf("imported %d of %d donors: %w", n, len(donors), err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d donors\n", n)
	return nil
}
