//go:build ignore

// Package main generates a synthetic Cranfield-style collection for sweep
// benchmarking.
// Usage: go run scripts/generate-test-corpus.go -docs 1400 -queries 225 -output testdata/bench
package main

import (
	"bufio"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
)

var (
	numDocs    = flag.Int("docs", 1400, "Number of documents to generate")
	numQueries = flag.Int("queries", 225, "Number of queries to generate")
	outputDir  = flag.String("output", "testdata/bench", "Output directory")
	seed       = flag.Int64("seed", 42, "Random seed for reproducibility")
)

// Each document and query is drawn around one topic, so documents sharing a
// query's topic are its relevant set.
var (
	topics = []string{
		"boundary layer", "shock wave", "heat transfer", "supersonic flow",
		"wing loading", "slipstream", "laminar separation", "hypersonic nozzle",
		"buckling", "panel flutter", "viscous drag", "stagnation point",
		"blunt body", "jet mixing", "turbulent wake", "thin airfoil",
	}
	fillers = []string{
		"experimental", "theoretical", "investigation", "analysis", "results",
		"pressure", "distribution", "velocity", "temperature", "measured",
		"approximate", "solution", "equations", "model", "effects", "mach",
		"number", "reynolds", "surface", "cylinder", "plate", "cone",
		"incompressible", "compressible", "steady", "unsteady", "method",
	}
	authors = []string{
		"brenckman,m.", "ting-yili", "glauert,m.b.", "lees,l.", "rosen,j.",
		"van dyke,m.d.", "lighthill,m.j.", "chapman,d.r.", "probstein,r.f.",
	}
)

func main() {
	flag.Parse()
	rng := rand.New(rand.NewSource(*seed))

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output directory: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Generating %d documents and %d queries in %s...\n", *numDocs, *numQueries, *outputDir)

	docTopics := make([]int, *numDocs)
	for i := range docTopics {
		docTopics[i] = rng.Intn(len(topics))
	}

	if err := writeFile("cran.all.1400", func(w *bufio.Writer) {
		for i, t := range docTopics {
			fmt.Fprintf(w, ".I %d\n.T\n%s\n.A\n%s\n.B\nj. synth. 1, %d.\n.W\n%s\n",
				i+1, sentence(rng, t, 8), authors[rng.Intn(len(authors))], i+1, sentence(rng, t, 60))
		}
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing corpus: %v\n", err)
		os.Exit(1)
	}

	queryTopics := make([]int, *numQueries)
	for i := range queryTopics {
		queryTopics[i] = rng.Intn(len(topics))
	}

	if err := writeFile("cran.qry", func(w *bufio.Writer) {
		for i, t := range queryTopics {
			// Query ids in the file are sparse; readers renumber them.
			fmt.Fprintf(w, ".I %03d\n.W\nwhat is known about %s ?\n", 2*i+1, sentence(rng, t, 6))
		}
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing queries: %v\n", err)
		os.Exit(1)
	}

	judgments := 0
	if err := writeFile("cranqrel", func(w *bufio.Writer) {
		for qi, qt := range queryTopics {
			for di, dt := range docTopics {
				if dt != qt {
					continue
				}
				fmt.Fprintf(w, "%d 0 %d %d\n", qi+1, di+1, 1+rng.Intn(4))
				judgments++
			}
		}
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing judgments: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Generated %d documents, %d queries and %d judgments.\n", *numDocs, *numQueries, judgments)
}

func writeFile(name string, fill func(*bufio.Writer)) error {
	f, err := os.Create(filepath.Join(*outputDir, name))
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	fill(w)
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// sentence returns n filler words with the topic phrase mixed in.
func sentence(rng *rand.Rand, topic, n int) string {
	words := make([]string, 0, n+4)
	for i := 0; i < n; i++ {
		if i%7 == 0 {
			words = append(words, topics[topic])
			continue
		}
		words = append(words, fillers[rng.Intn(len(fillers))])
	}
	return strings.Join(words, " ")
}
