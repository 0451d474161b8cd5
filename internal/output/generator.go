package output

import (
	"fmt"

	"github.com/compose-network/receiver-deployer/internal/infra/filesystem"
	"gopkg.in/yaml.v3"
)

// Generator writes a YAML summary of a deployment for downstream tooling
type Generator struct {
	path   string
	writer filesystem.Writer
}

func NewGenerator(path string, writer filesystem.Writer) *Generator {
	return &Generator{
		path:   path,
		writer: writer,
	}
}

func (g *Generator) Path() string {
	return g.path
}

// Write marshals model to the generator's path
func (g *Generator) Write(model *Model) error {
	data, err := yaml.Marshal(model)
	if err != nil {
		return fmt.Errorf("could not marshal output model. Err: '%w'", err)
	}

	if err := g.writer.WriteBytes(g.path, data); err != nil {
		return fmt.Errorf("could not write output file. Err: '%w'", err)
	}

	return nil
}

// Read loads a previously written summary
func Read(data []byte) (*Model, error) {
	var model Model
	if err := yaml.Unmarshal(data, &model); err != nil {
		return nil, fmt.Errorf("could not parse output file. Err: '%w'", err)
	}
	return &model, nil
}
