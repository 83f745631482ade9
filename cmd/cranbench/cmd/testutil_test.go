package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

const fixtureCorpus = `.I 1
.T
experimental investigation of the aerodynamics of a
wing in a slipstream .
.A
brenckman,m.
.W
an experimental study of a wing in a propeller
slipstream was made in order to determine the spanwise distribution of the lift
.I 2
.T
simple shear flow past a flat plate in an incompressible fluid of small
viscosity .
.A
ting-yili
.W
in the study of high-speed viscous flow past a two-dimensional body
.I 3
.T
the boundary layer in simple shear flow past a flat plate .
.A
m. b. glauert
.W
the boundary-layer equations are presented for steady incompressible flow
with no pressure gradient .
`

const fixtureQueries = `.I 001
.W
propeller slipstream wing aerodynamics
.I 002
.W
shear flow over a flat plate
`

const fixtureQrels = "1 0 1 1\n2 0 2 1\n2 0 3 1\n"

// missingTool never resolves on PATH.
const missingTool = "cranbench-test-no-such-trec-eval"

// workspace lays out a collection and a cranbench.yaml in a temp directory
// and makes it the working directory. Extra YAML is appended to the file.
func workspace(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()

	files := map[string]string{
		filepath.Join("cran", "cran.all.1400"): fixtureCorpus,
		filepath.Join("cran", "cran.qry"):      fixtureQueries,
		filepath.Join("cran", "cranqrel"):      fixtureQrels,
	}
	for name, body := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}

	yml := strings.Join([]string{
		"version: 1",
		"state:",
		"  ledger: " + filepath.Join(dir, "state", "ledger.db"),
		"evaluator:",
		"  tool: " + missingTool,
		"  retries: 0",
		extra,
	}, "\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cranbench.yaml"), []byte(yml), 0o644))

	t.Chdir(dir)
	configPath = ""
	return dir
}

// execute runs c with args and returns stdout and the error.
func execute(t *testing.T, c *cobra.Command, args ...string) (string, error) {
	t.Helper()
	stdout := &bytes.Buffer{}
	c.SetOut(stdout)
	c.SetErr(&bytes.Buffer{})
	c.SetArgs(args)
	err := c.Execute()
	return stdout.String(), err
}
