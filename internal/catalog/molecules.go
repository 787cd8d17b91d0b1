package catalog

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/dukex/taskgraph/pkg/workflow"
)

// Research pipeline steps.
const (
	StepImportData           = "import_data"
	StepGeometryOptimization = "geometry_optimization"
	StepElectronicStructure  = "electronic_structure"
	StepFukuiCalculation     = "fukui_calculation"
	StepChargeGeodisk        = "charge_geodisk"
	StepChargeChelpg         = "charge_chelpg"
)

type Molecule struct {
	Name   string `json:"name"   yaml:"name"`
	Charge int    `json:"charge" yaml:"charge"`
}

func DefaultMolecules() []Molecule {
	return []Molecule{
		{Name: "water", Charge: 0},
		{Name: "ammonium", Charge: 1},
		{Name: "hydroxide", Charge: -1},
	}
}

// StepResult is what each computation stores in the context under its step name.
type StepResult struct {
	Step      string             `json:"step"`
	Molecules map[string]float64 `json:"molecules"`
}

// Molecules builds the research pipeline: import, optimise geometry, compute
// the electronic structure, then run the three population analyses in
// parallel.
func Molecules(molecules []Molecule, delay time.Duration) (*workflow.Workflow[string], error) {
	if len(molecules) == 0 {
		return nil, fmt.Errorf("molecules workflow needs at least one molecule")
	}

	wf := workflow.New[string](MoleculesWorkflow, "1")

	err := wf.AddNode(workflow.NewNode(StepImportData, workflow.FromFunc(func(ctx context.Context, wctx *workflow.Context) error {
		err := sleep(ctx, delay)
		if err != nil {
			return err
		}

		wctx.Set(StepImportData, molecules)

		return nil
	}), workflow.WithDescription("load the molecule set")))
	if err != nil {
		return nil, err
	}

	computations := []struct {
		step   string
		after  string
		source string
	}{
		{StepGeometryOptimization, StepImportData, ""},
		{StepElectronicStructure, StepGeometryOptimization, StepGeometryOptimization},
		{StepFukuiCalculation, StepElectronicStructure, StepElectronicStructure},
		{StepChargeGeodisk, StepElectronicStructure, StepElectronicStructure},
		{StepChargeChelpg, StepElectronicStructure, StepElectronicStructure},
	}

	for _, c := range computations {
		err = wf.AddNode(workflow.NewNode(c.step, compute(c.step, c.source, delay)))
		if err != nil {
			return nil, err
		}

		err = wf.AddDependency(c.after, c.step)
		if err != nil {
			return nil, err
		}
	}

	return wf, nil
}

// compute simulates one step over every imported molecule, seeding each value
// from the previous step's result when there is one.
func compute(step, source string, delay time.Duration) workflow.NodeFunc {
	return workflow.FromFunc(func(ctx context.Context, wctx *workflow.Context) error {
		molecules, ok := workflow.Value[[]Molecule](wctx, StepImportData)
		if !ok {
			return fmt.Errorf("%s: no imported molecules", step)
		}

		var previous StepResult
		if source != "" {
			err := wctx.Decode(source, &previous)
			if err != nil {
				return fmt.Errorf("%s: %w", step, err)
			}
		}

		result := StepResult{Step: step, Molecules: make(map[string]float64, len(molecules))}

		for _, m := range molecules {
			err := sleep(ctx, delay/time.Duration(len(molecules)))
			if err != nil {
				return err
			}

			result.Molecules[m.Name] = previous.Molecules[m.Name] + score(step, m)
		}

		wctx.Set(step, result)

		return nil
	})
}

func score(step string, m Molecule) float64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(step + "/" + m.Name))

	return float64(h.Sum32()%1000)/100 + float64(m.Charge)
}
