package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/plan-systems/klog"

	"github.com/tess-systems/gotes/gotes"
	"github.com/tess-systems/gotes/libtes"
	"github.com/tess-systems/gotes/libtes/catalog"
)

var (
	regular  = flag.String("regular", "", "generate for the regular tiling {p,q}, e.g. -regular 7,3")
	twocolor = flag.String("twocolor", "", "generate for the two-colour tiling {p,q}, q even")
	square   = flag.Int("square", 0, "generate for the square grid at the given cycle length (1, 2 or 4)")
	tesFile  = flag.String("tes", "", "read a tiling description from a .tes file")
	timeout  = flag.Duration("timeout", 60*time.Second, "wall-clock budget")
	maxCells = flag.Int("max-cells", 1000000, "cell budget")
	dbPath   = flag.String("db", "", "store the generated rules in the catalog at this path")
	export   = flag.Bool("export", false, "print the persisted rule format instead of a summary")
)

func main() {
	flag.Set("logtostderr", "true")
	flag.Set("v", "2")

	fset := flag.NewFlagSet("", flag.ContinueOnError)
	klog.InitFlags(fset)
	fset.Set("logtostderr", "true")
	fset.Set("v", "2")
	klog.SetFormatter(&klog.FmtConstWidth{
		FileNameCharWidth: 16,
		UseColor:          true,
	})

	flag.Parse()
	defer klog.Flush()

	tiling, err := pickTiling()
	if err != nil {
		klog.Fatalf("%v", err)
	}

	cfg := gotes.DefaultConfig()
	cfg.Timeout = *timeout
	cfg.MaxCellCount = *maxCells

	eng, err := libtes.New(tiling, cfg)
	if err != nil {
		klog.Fatalf("%v", err)
	}
	rs, err := eng.Generate()
	if err != nil {
		klog.Fatalf("%s: %v", tiling.Name, err)
	}

	st := eng.Stats()
	klog.Infof("%s: %d states (%d pre-minimization), %d cells, %d unified, %d tries",
		tiling.Name, len(rs.States), st.StatesPreMini, st.CellCount, st.Unified, st.Tries)

	if *export {
		if err := libtes.ExportRules(os.Stdout, rs); err != nil {
			klog.Fatalf("%v", err)
		}
	}

	if *dbPath != "" {
		cat, err := catalog.Open(catalog.Opts{Path: *dbPath})
		if err != nil {
			klog.Fatalf("%v", err)
		}
		defer cat.Close()
		if err := cat.Store(rs); err != nil {
			klog.Fatalf("%v", err)
		}
		klog.Infof("stored rules for %s in %s", tiling.Name, *dbPath)
	}
}

func pickTiling() (*gotes.Tiling, error) {
	switch {
	case *tesFile != "":
		src, err := os.ReadFile(*tesFile)
		if err != nil {
			return nil, err
		}
		return libtes.ParseTiling(string(src))
	case *regular != "":
		p, q, err := parsePQ(*regular)
		if err != nil {
			return nil, err
		}
		return libtes.Regular(p, q), nil
	case *twocolor != "":
		p, q, err := parsePQ(*twocolor)
		if err != nil {
			return nil, err
		}
		return libtes.TwoColor(p, q), nil
	case *square != 0:
		return libtes.SquareGrid(*square), nil
	}
	return nil, fmt.Errorf("no tiling selected; use -regular, -twocolor, -square or -tes")
}

func parsePQ(s string) (p, q int, err error) {
	if _, err = fmt.Sscanf(s, "%d,%d", &p, &q); err != nil {
		return 0, 0, fmt.Errorf("want p,q: %w", err)
	}
	return p, q, nil
}
