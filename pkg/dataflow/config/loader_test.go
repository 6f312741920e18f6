package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/dataflow/pkg/dataflow/config"
)

var testEnv = config.WithEnv(map[string]string{"MIN_TOTAL": "100"})

func TestLoadFile_Formats(t *testing.T) {
	for _, name := range []string{"orders.yaml", "orders.json", "orders.hcl"} {
		t.Run(name, func(t *testing.T) {
			spec, err := config.LoadFile(filepath.Join("testdata", name), testEnv)
			require.NoError(t, err)

			assert.Equal(t, "orders", spec.Name)
			assert.Equal(t, []string{"src"}, spec.Inputs)
			assert.Equal(t, []string{"sink"}, spec.Outputs)

			ids := make([]string, 0, len(spec.Nodes))
			for _, n := range spec.Nodes {
				ids = append(ids, n.ID)
			}
			assert.Equal(t, []string{"src", "big", "batch", "sink"}, ids)

			big, ok := spec.Node("big")
			require.True(t, ok)
			assert.Equal(t, "filter", big.Kind)
			assert.Equal(t, "total > 100", big.Params().String("when", ""))
			assert.Equal(t, "$.source == 'web'", big.Params().String("meta", ""))

			batch, _ := spec.Node("batch")
			params := batch.Params()
			assert.Equal(t, 10, params.Int("size", 0))
			assert.Equal(t, 2*time.Second, params.Duration("every", 0))
			assert.Equal(t, []string{"a", "b"}, params.StringSlice("ports", nil))

			src, _ := spec.Node("src")
			assert.Empty(t, src.Params().Keys())

			require.Len(t, spec.Links, 3)
			from, to, err := spec.Links[1].Endpoints()
			require.NoError(t, err)
			assert.Equal(t, config.Endpoint{Node: "big", Port: "out"}, from)
			assert.Equal(t, config.Endpoint{Node: "batch", Port: "in"}, to)
		})
	}
}

func TestLoadFile_Errors(t *testing.T) {
	_, err := config.LoadFile(filepath.Join("testdata", "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "pipeline.toml")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
	_, err = config.LoadFile(path)
	assert.ErrorIs(t, err, config.ErrUnsupportedFormat)
}

func TestParseYAML_Missing(t *testing.T) {
	doc := []byte(`
inputs: [src]
nodes:
  - id: src
    kind: filter
    config:
      when: "x > ${LIMIT}"
`)

	spec, err := config.ParseYAML(doc, config.WithEnv(nil))
	require.NoError(t, err)
	n, _ := spec.Node("src")
	assert.Equal(t, "x > ${LIMIT}", n.Params().String("when", ""))

	spec, err = config.ParseYAML(doc, config.WithEnv(nil), config.WithMissing(config.MissingEmpty))
	require.NoError(t, err)
	n, _ = spec.Node("src")
	assert.Equal(t, "x > ", n.Params().String("when", ""))

	_, err = config.ParseYAML(doc, config.WithEnv(nil), config.WithMissing(config.MissingError))
	var undefined *config.UndefinedVariableError
	require.ErrorAs(t, err, &undefined)
	assert.Equal(t, []string{"LIMIT"}, undefined.Names)
}

func TestParseYAML_UnknownField(t *testing.T) {
	_, err := config.ParseYAML([]byte("inputs: [a]\nnodez: []\n"))
	assert.Error(t, err)
}

func TestParseJSON_Invalid(t *testing.T) {
	_, err := config.ParseJSON([]byte(`{"inputs": [`))
	assert.Error(t, err)
}

func TestParseHCL_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"syntax", `pipeline "p" {`},
		{"missing block", `inputs = ["a"]`},
		{"undefined env", `
pipeline "p" {
  inputs = ["a"]
  node "a" {
    kind   = "filter"
    config = { when = env.NOPE }
  }
}`},
		{"config not object", `
pipeline "p" {
  inputs = ["a"]
  node "a" {
    kind   = "filter"
    config = "x"
  }
}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.ParseHCL([]byte(tt.src), "test.hcl", config.WithEnv(map[string]string{}))
			assert.Error(t, err)
		})
	}
}

func TestParseHCL_Functions(t *testing.T) {
	src := `
pipeline "p" {
  inputs = ["a"]
  node "a" {
    kind   = "split"
    config = {
      ports = [upper(env.REGION), "b"]
      ratio = 0.25
    }
  }
}`
	spec, err := config.ParseHCL([]byte(src), "p.hcl", config.WithEnv(map[string]string{"REGION": "eu"}))
	require.NoError(t, err)

	n, _ := spec.Node("a")
	assert.Equal(t, []string{"EU", "b"}, n.Params().StringSlice("ports", nil))
	assert.Equal(t, 0.25, n.Params().Float("ratio", 0))
}

func TestSpecValidate(t *testing.T) {
	spec := &config.PipelineSpec{
		Nodes: []config.NodeSpec{
			{ID: "a", Kind: "passthrough"},
			{ID: "a", Kind: "passthrough"},
			{ID: "", Kind: "passthrough"},
			{ID: "b"},
		},
		Links: []config.LinkSpec{{From: "a/", To: "b"}},
	}

	err := spec.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrInvalidSpec)
	msg := err.Error()
	assert.Contains(t, msg, `duplicate node "a"`)
	assert.Contains(t, msg, "node 2 has no id")
	assert.Contains(t, msg, `node "b" has no kind`)
	assert.Contains(t, msg, "link 0")
	assert.Contains(t, msg, "no inputs declared")
}

func TestParseEndpoint(t *testing.T) {
	tests := []struct {
		in      string
		want    config.Endpoint
		wantErr bool
	}{
		{in: "a", want: config.Endpoint{Node: "a", Port: "out"}},
		{in: "a/err", want: config.Endpoint{Node: "a", Port: "err"}},
		{in: " a/x ", want: config.Endpoint{Node: "a", Port: "x"}},
		{in: "/x", wantErr: true},
		{in: "a/", wantErr: true},
		{in: "a/b/c", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := config.ParseEndpoint(tt.in, config.DefaultOutPort)
			if tt.wantErr {
				assert.ErrorIs(t, err, config.ErrInvalidSpec)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want.Node+"/"+tt.want.Port, got.String())
		})
	}
}

func TestExpand(t *testing.T) {
	t.Setenv("DATAFLOW_TEST_HOST", "db")
	assert.Equal(t, "db:5432 ${DATAFLOW_TEST_UNSET} $.meta", config.Expand("${DATAFLOW_TEST_HOST}:5432 ${DATAFLOW_TEST_UNSET} $.meta"))
}
