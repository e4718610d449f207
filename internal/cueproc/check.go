package cueproc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/roach88/pipejournal/internal/pipeline"
	"github.com/roach88/pipejournal/internal/runner"
	"github.com/roach88/pipejournal/internal/value"
)

// Slot names of the "check" pipeline.
const (
	EchoSlot = "echo"
	CUESlot  = "cue"
)

// CheckSpec returns the "check" pipeline: every document goes through both
// the echo projection and the CUE schema. The output holds one object per
// slot with either its "output" or its "error"; the entry fails only when
// both slots fail.
func CheckSpec() pipeline.Spec {
	echo, cue := pipeline.EchoSpec(), PipelineSpec()
	return pipeline.Spec{
		Name:          "check",
		Description:   "Project each document and unify it with a CUE schema side by side",
		DefaultConfig: pipeline.MergeConfig(echo.DefaultConfig, cue.DefaultConfig),
		Required:      cue.Required,
		Validate: func(cfg value.Object) error {
			if err := echo.Validate(cfg); err != nil {
				return err
			}
			return cue.Validate(cfg)
		},
		Factory: CheckFactory,
		Columns: []pipeline.Column{
			pipeline.IDColumn,
			pipeline.StatusColumn,
			SlotColumn("Projection", EchoSlot),
			SlotColumn("Schema", CUESlot),
		},
		Metrics: checkMetrics,
	}
}

// CheckFactory fans each document out to the echo and cue processors.
func CheckFactory(cfg value.Object) runner.Processor[pipeline.Document, value.Value] {
	fan := runner.Fanout(
		runner.Bind[value.Object, pipeline.Document, value.Value](EchoSlot, pipeline.EchoSpec().Factory),
		runner.Bind[value.Object, pipeline.Document, value.Value](CUESlot, Factory),
	)(cfg)

	return runner.ProcessorFunc[pipeline.Document, value.Value](func(ctx context.Context, doc pipeline.Document) (value.Value, error) {
		outs, err := fan.Process(ctx, doc)
		if err != nil {
			return nil, err
		}
		return outputsValue(outs)
	})
}

// outputsValue keys each slot result by slot name.
func outputsValue(outs runner.Outputs) (value.Value, error) {
	obj := make(value.Object, len(outs))
	for _, r := range outs {
		if r.Failed() {
			data, err := json.Marshal(r.Error)
			if err != nil {
				return nil, fmt.Errorf("slot %s: encode error: %w", r.Name, err)
			}
			v, err := value.Unmarshal(data)
			if err != nil {
				return nil, fmt.Errorf("slot %s: decode error: %w", r.Name, err)
			}
			obj[r.Name] = value.Object{"error": v}
			continue
		}
		out, ok := r.Output.(value.Value)
		if !ok {
			var err error
			if out, err = value.FromAny(r.Output); err != nil {
				return nil, fmt.Errorf("slot %s: %w", r.Name, err)
			}
		}
		obj[r.Name] = value.Object{"output": out}
	}
	return obj, nil
}

// slotError returns the recorded error type of slot in a check output, and
// whether the slot is present at all.
func slotError(e pipeline.Entry, slot string) (typ string, failed, ok bool) {
	out, succeeded := e.Output()
	if !succeeded {
		return "", false, false
	}
	obj, isObj := out.(value.Object)
	if !isObj {
		return "", false, false
	}
	res, isObj := obj[slot].(value.Object)
	if !isObj {
		return "", false, false
	}
	errObj, hasErr := res["error"].(value.Object)
	if !hasErr {
		return "", false, true
	}
	t, _ := errObj["type"].(value.String)
	return string(t), true, true
}

// SlotColumn shows "ok" for a slot that succeeded and its error type
// otherwise. Entries where every slot failed show a blank cell.
func SlotColumn(name, slot string) pipeline.Column {
	return pipeline.Column{
		Name: name,
		Cell: func(r pipeline.Row) string {
			typ, failed, ok := slotError(r.Entry, slot)
			switch {
			case !ok:
				return ""
			case failed && typ == "":
				return "error"
			case failed:
				return typ
			}
			return "ok"
		},
	}
}

func checkMetrics(e pipeline.Entry) map[string]float64 {
	m := map[string]float64{"projected": 0, "schema_valid": 0}
	if _, failed, ok := slotError(e, EchoSlot); ok && !failed {
		m["projected"] = 1
	}
	if _, failed, ok := slotError(e, CUESlot); ok && !failed {
		m["schema_valid"] = 1
	}
	return m
}
