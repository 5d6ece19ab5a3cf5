package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ContentCurator/internal/domain"
)

type immediateDriver struct {
	started, stopped bool
}

func (d *immediateDriver) Start(_ context.Context, job func(time.Time)) error {
	d.started = true
	job(time.Date(2024, 1, 1, 6, 0, 0, 0, time.UTC))
	return nil
}

func (d *immediateDriver) Stop(context.Context) error {
	d.stopped = true
	return nil
}

type recordingRunner struct {
	seeds []string
	cfgs  []RunConfig
}

func (r *recordingRunner) Run(_ context.Context, seed string, cfg RunConfig) (domain.PipelineRun, error) {
	r.seeds = append(r.seeds, seed)
	r.cfgs = append(r.cfgs, cfg)
	if seed == "broken" {
		return domain.PipelineRun{}, errors.New("boom")
	}
	return domain.PipelineRun{ID: "run-" + seed}, nil
}

func TestSchedulerRunsEverySeedOnTrigger(t *testing.T) {
	driver := &immediateDriver{}
	runner := &recordingRunner{}
	calls := 0
	config := func() RunConfig {
		calls++
		return RunConfig{MaxIterations: 2}
	}

	s := NewScheduler(driver, runner, []string{"broken", "staff engineer"}, config, nil)
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Stop(context.Background()))

	assert.True(t, driver.started)
	assert.True(t, driver.stopped)
	assert.Equal(t, []string{"broken", "staff engineer"}, runner.seeds, "a failing seed does not stop the others")
	assert.Equal(t, 1, calls, "config is read once per trigger")
	assert.Equal(t, 2, runner.cfgs[1].MaxIterations)
}

func TestSchedulerWithoutSeedsDoesNothing(t *testing.T) {
	driver := &immediateDriver{}
	s := NewScheduler(driver, &recordingRunner{}, nil, nil, nil)
	require.NoError(t, s.Start(context.Background()))
	assert.False(t, driver.started)
}
