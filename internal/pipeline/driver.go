package pipeline

import (
	"context"
	"fmt"

	"github.com/standardbeagle/fab/internal/config"
	"github.com/standardbeagle/fab/internal/debug"
	"github.com/standardbeagle/fab/internal/metrics"
	"github.com/standardbeagle/fab/internal/tools"
)

// Runtime bundles what every step runs against: the immutable Config,
// the shared Artefact Store, and the tool box. Constructed once by the
// driver; steps never reach for globals.
type Runtime struct {
	Config  *config.Config
	Store   *Store
	ToolBox *tools.ToolBox
	Metrics *metrics.RunMetrics
}

// Step is one pipeline stage: it reads named artefacts from the store
// and publishes its own outputs. A step either succeeds or returns one
// composite error carrying every per-item failure it gathered.
type Step interface {
	Name() string
	Run(ctx context.Context, rt *Runtime) error
}

// Driver runs an ordered list of steps against a shared Runtime,
// recording per-stage timings. Stages run strictly sequentially; any
// fan-out happens inside a stage.
type Driver struct {
	steps []Step
}

// NewDriver returns a Driver over steps, run in order.
func NewDriver(steps ...Step) *Driver {
	return &Driver{steps: steps}
}

// Run executes every step in order, stopping at the first failure.
// Timings are written to the workspace metrics directory regardless of
// outcome, so a failed run is still diagnosable.
func (d *Driver) Run(ctx context.Context, rt *Runtime) error {
	if rt.Metrics == nil {
		rt.Metrics = metrics.NewRunMetrics()
	}
	defer func() {
		if path, err := rt.Metrics.Write(rt.Config.MetricsDir()); err == nil {
			debug.Log("DRIVER", "stage timings written to %s", path)
		}
	}()

	for _, step := range d.steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		debug.Log("DRIVER", "running step %s", step.Name())
		done := rt.Metrics.StartStage(step.Name())
		err := step.Run(ctx, rt)
		done(0, 0)
		if err != nil {
			return fmt.Errorf("step %s: %w", step.Name(), err)
		}
	}
	return nil
}
