package main

import (
	"fmt"
	"io"
	"math/rand"
	"os"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/atomvar/atomvar/comm"
	"github.com/atomvar/atomvar/config"
	"github.com/atomvar/atomvar/domain"
	"github.com/atomvar/atomvar/model"
	"github.com/atomvar/atomvar/variance"
)

func main() {
	root := &cobra.Command{
		Use:   "atomvar",
		Short: "Per-particle uncertainty of a machine-learned potential",
		Long: "atomvar evaluates the per-particle, per-axis uncertainty " +
			"scores of a coefficient model over a synthetic particle box, " +
			"decomposed across simulated domain-owning ranks.",
		SilenceUsage: true,
	}

	var configPath string
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the uncertainty pipeline described by a config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath)
		},
	}
	runCmd.Flags().StringVarP(&configPath, "config", "c", "",
		"Run configuration file.")
	runCmd.MarkFlagRequired("config")

	exampleCmd := &cobra.Command{
		Use:   "example-config",
		Short: "Print a template run configuration file",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Print(config.Example())
		},
	}

	root.AddCommand(runCmd, exampleCmd)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(configPath string) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer logger.Sync()
	log := logger.Sugar()

	cfg, err := config.Read(configPath)
	if err != nil {
		return err
	}

	// The driver doubles as the launcher, so it may peek at the model for
	// the decomposition geometry; the ranks still load it collectively.
	m, err := model.Read(cfg.Coefficients)
	if err != nil {
		return err
	}
	log.Infow("loaded model",
		"species", m.NSpecies, "n_max", m.NMax, "l_max", m.LMax,
		"descriptors", m.NDescriptors(), "cutoff", m.Cutoff,
		"radial", m.RadialName, "cutoff_function", m.CutoffName,
	)

	x, types := lattice(cfg, m.NSpecies)
	locals := domain.Decompose(x, types, cfg.Ranks, m.Cutoff)
	log.Infow("decomposed box", "particles", len(x), "ranks", cfg.Ranks)

	ranks := comm.NewGroup(cfg.Ranks)
	ests := make([]*variance.Estimator, cfg.Ranks)
	errs := make([]error, cfg.Ranks)

	wg := sync.WaitGroup{}
	for i, r := range ranks {
		wg.Add(1)
		go func(i int, r *comm.Rank) {
			defer wg.Done()
			e := variance.New()
			ests[i] = e
			if errs[i] = e.Configure(
				[]string{"*", "*", cfg.Coefficients}); errs[i] != nil {
				return
			}
			if errs[i] = e.Load(r); errs[i] != nil {
				return
			}
			if errs[i] = e.ComputePerParticle(locals[i].Sys); errs[i] != nil {
				return
			}
			locals[i].ReverseSum(r, e)
		}(i, r)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return fmt.Errorf("rank %d: %w", i, err)
		}
	}

	scores := make([][3]float64, len(x))
	for i, l := range locals {
		s := ests[i].Scores()
		for k := 0; k < l.Sys.NLocal; k++ {
			scores[l.Global[k]] = s[k]
		}
	}

	out := io.Writer(os.Stdout)
	if cfg.Output != "" {
		f, err := os.Create(cfg.Output)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
		log.Infow("writing scores", "path", cfg.Output)
	}
	return writeScores(out, x, types, scores)
}

// lattice places Cells^3 jittered particles on a cubic lattice, cycling
// species tags through the model's range.
func lattice(cfg *config.Run, nSpecies int) ([][3]float64, []int) {
	gen := rand.New(rand.NewSource(int64(cfg.Seed)))
	n := cfg.Cells
	a := cfg.LatticeConstant

	x := make([][3]float64, 0, n*n*n)
	types := make([]int, 0, n*n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			for k := 0; k < n; k++ {
				p := [3]float64{float64(i) * a, float64(j) * a, float64(k) * a}
				for c := 0; c < 3; c++ {
					p[c] += cfg.Jitter * (2*gen.Float64() - 1)
				}
				x = append(x, p)
				types = append(types, 1+len(types)%nSpecies)
			}
		}
	}
	return x, types
}

func writeScores(w io.Writer, x [][3]float64, types []int,
	scores [][3]float64) error {

	for i := range x {
		_, err := fmt.Fprintf(w, "%d %d %g %g %g %g %g %g\n",
			i, types[i], x[i][0], x[i][1], x[i][2],
			scores[i][0], scores[i][1], scores[i][2],
		)
		if err != nil {
			return err
		}
	}
	return nil
}
