// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bureau-foundation/bureau-release/lib/build"
	"github.com/bureau-foundation/bureau-release/lib/cachekey"
	"github.com/bureau-foundation/bureau-release/lib/clock"
	"github.com/bureau-foundation/bureau-release/lib/matrix"
	"github.com/bureau-foundation/bureau-release/lib/packager"
	"github.com/bureau-foundation/bureau-release/lib/publish"
	"github.com/bureau-foundation/bureau-release/lib/releaseinfo"
	"github.com/bureau-foundation/bureau-release/lib/releaserecord"
)

// Stage names. Target-scoped node names are "<stage>/<target-id>".
const (
	StageResolve   = "resolve"
	StageCacheKeys = "cache-keys"
	StagePrefetch  = "prefetch"
	StageCreate    = "create-release"
	StageRotate    = "rotate-release"
	StageBuild     = "build"
	StagePackage   = "package"
	StageUpload    = "upload"
	StagePublish   = "publish"
)

// TargetNodeName is the node name of stage for target.
func TargetNodeName(stage string, target matrix.Target) string {
	return stage + "/" + target.ID()
}

// InfoResolver resolves a trigger. Implemented by
// *releaseinfo.Resolver.
type InfoResolver interface {
	Resolve(trigger releaseinfo.Trigger) (releaseinfo.Info, error)
}

// KeyDeriver derives the run's cache keys. Implemented by
// *cachekey.Deriver.
type KeyDeriver interface {
	Derive(ctx context.Context) (cachekey.Keys, []string)
}

// Builder builds targets. Implemented by *build.Executor.
type Builder interface {
	Prefetch(ctx context.Context, request build.Request) (bool, error)
	Build(ctx context.Context, request build.Request) (*build.Result, error)
}

// Archiver packages and verifies a target's binaries. Implemented by
// *packager.Packager.
type Archiver interface {
	Project() string
	Package(ctx context.Context, request packager.Request) (*packager.Artifact, error)
}

// Config wires a Controller.
type Config struct {
	Matrix    *matrix.Matrix
	Resolver  InfoResolver
	Deriver   KeyDeriver
	Builder   Builder
	Packager  Archiver
	Records   *releaserecord.Manager
	Publisher *publish.Publisher

	// Statuses, if set, receives a commit status per target when the
	// trigger names a commit.
	Statuses releaserecord.StatusReporter

	// StatusContext prefixes commit status contexts. Default "release".
	StatusContext string

	// Parallelism bounds concurrently running stages. Zero is
	// unbounded.
	Parallelism int

	// ResultPath, if set, receives a JSONL progress log.
	ResultPath string

	// DryRun is reported in the summary. The caller makes the run dry
	// by wiring an in-memory host.
	DryRun bool

	Clock  clock.Clock
	Logger *slog.Logger
}

// Controller runs release flows.
type Controller struct {
	config  Config
	targets []matrix.Target
	clock   clock.Clock
	logger  *slog.Logger
}

// NewController validates config.
func NewController(config Config) (*Controller, error) {
	var missing []string
	for _, required := range []struct {
		name    string
		present bool
	}{
		{"matrix", config.Matrix != nil},
		{"resolver", config.Resolver != nil},
		{"deriver", config.Deriver != nil},
		{"builder", config.Builder != nil},
		{"packager", config.Packager != nil},
		{"records", config.Records != nil},
		{"publisher", config.Publisher != nil},
	} {
		if !required.present {
			missing = append(missing, required.name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("pipeline: missing %s", strings.Join(missing, ", "))
	}
	targets := config.Matrix.List()
	if len(targets) == 0 {
		return nil, errors.New("pipeline: the build matrix schedules no targets")
	}
	if config.StatusContext == "" {
		config.StatusContext = "release"
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Controller{
		config:  config,
		targets: targets,
		clock:   config.Clock,
		logger:  config.Logger,
	}, nil
}

// Targets returns the scheduled targets in matrix order.
func (controller *Controller) Targets() []matrix.Target {
	return append([]matrix.Target(nil), controller.targets...)
}

// FlowFor is the flow a trigger selects.
func FlowFor(trigger releaseinfo.Trigger) releaseinfo.Kind {
	if trigger.Event == releaseinfo.EventSchedule {
		return releaseinfo.Nightly
	}
	return releaseinfo.Versioned
}

// FlowStages lists the stages of flow in dependency order. Target
// stages run once per target.
func FlowStages(flow releaseinfo.Kind) []string {
	if flow == releaseinfo.Nightly {
		return []string{StageResolve, StageCacheKeys, StagePrefetch, StageRotate, StageBuild, StagePackage, StageUpload}
	}
	return []string{StageResolve, StageCacheKeys, StagePrefetch, StageCreate, StageBuild, StagePackage, StageUpload, StagePublish}
}

// Graph builds the stage graph for trigger's flow.
func (controller *Controller) Graph(trigger releaseinfo.Trigger) *Graph {
	flow := FlowFor(trigger)
	graph := NewGraph()

	graph.AddNode(Node{Name: StageResolve, Stage: StageResolve, Scope: RunScope, Run: controller.resolve})
	graph.AddNode(Node{Name: StageCacheKeys, Stage: StageCacheKeys, Scope: RunScope, ContinueOnError: true, Run: controller.deriveKeys})
	graph.AddNode(Node{Name: StagePrefetch, Stage: StagePrefetch, Scope: RunScope, ContinueOnError: true, Run: controller.prefetch})
	graph.AddEdge(StageCacheKeys, StagePrefetch)

	record := StageCreate
	run := controller.createRelease
	if flow == releaseinfo.Nightly {
		record = StageRotate
		run = controller.rotateRelease
	}
	graph.AddNode(Node{Name: record, Stage: record, Scope: RunScope, Run: run})
	graph.AddEdge(StageResolve, record)

	if flow == releaseinfo.Versioned {
		graph.AddNode(Node{Name: StagePublish, Stage: StagePublish, Scope: RunScope, Run: controller.publishRelease})
	}

	for _, target := range controller.targets {
		buildName := TargetNodeName(StageBuild, target)
		packageName := TargetNodeName(StagePackage, target)
		uploadName := TargetNodeName(StageUpload, target)

		graph.AddNode(controller.targetNode(StageBuild, target, controller.buildTarget))
		graph.AddNode(controller.targetNode(StagePackage, target, controller.packageTarget))
		graph.AddNode(controller.targetNode(StageUpload, target, controller.uploadTarget))

		graph.AddEdge(StagePrefetch, buildName)
		graph.AddEdge(record, buildName)
		graph.AddEdge(buildName, packageName)
		graph.AddEdge(packageName, uploadName)
		if flow == releaseinfo.Versioned {
			graph.AddEdge(uploadName, StagePublish)
		}
	}
	return graph
}

// Run executes the flow trigger selects. The summary is always
// returned, and the error is non-nil whenever the outcome is not
// success: the abort cause, or a *BarrierError or *TargetsError
// aggregating the failed targets.
func (controller *Controller) Run(ctx context.Context, trigger releaseinfo.Trigger) (*Summary, error) {
	started := controller.clock.Now()
	flow := FlowFor(trigger)
	graph := controller.Graph(trigger)
	rc := NewRunContext(trigger)

	results, err := newResultLogFor(controller.config.ResultPath, controller.logger)
	if err != nil {
		return nil, err
	}
	defer results.Close()
	results.writeStart(flow.String(), graph.Len(), len(controller.targets), started)

	controller.logger.Info("release run started",
		"flow", flow.String(),
		"event", string(trigger.Event),
		"targets", len(controller.targets),
		"dry_run", controller.config.DryRun,
	)

	scheduler := &Scheduler{
		Parallelism: controller.config.Parallelism,
		Clock:       controller.clock,
		Logger:      controller.logger,
		Observer:    results.writeStage,
	}
	result, err := scheduler.Run(ctx, graph, rc)
	if err != nil {
		return nil, fmt.Errorf("pipeline graph: %w", err)
	}

	summary, runErr := controller.summarize(flow, rc, result)
	summary.DurationMS = controller.clock.Now().Sub(started).Milliseconds()
	results.writeComplete(summary)

	controller.logger.Info("release run finished",
		"flow", flow.String(),
		"tag", summary.Tag,
		"outcome", string(summary.Outcome),
		"passed", summary.Passed(),
		"failed", summary.Failed(),
		"published", summary.Published,
	)
	return summary, runErr
}

func newResultLogFor(path string, logger *slog.Logger) (*resultLog, error) {
	if path == "" {
		return nil, nil
	}
	return newResultLog(path, logger)
}

// targetNode wraps a target stage so its failure is reported as a
// commit status.
func (controller *Controller) targetNode(stage string, target matrix.Target, run func(context.Context, *RunContext, matrix.Target) error) Node {
	return Node{
		Name:   TargetNodeName(stage, target),
		Stage:  stage,
		Scope:  TargetScope,
		Target: &target,
		Run: func(ctx context.Context, rc *RunContext) error {
			err := run(ctx, rc, target)
			if err != nil && ctx.Err() == nil {
				controller.reportStatus(ctx, rc, target, releaserecord.StatusFailure,
					fmt.Sprintf("%s failed: %s", stage, ErrorKind(err)))
			}
			return err
		},
	}
}

func (controller *Controller) reportStatus(ctx context.Context, rc *RunContext, target matrix.Target, state, description string) {
	commit := rc.Trigger().Commit
	if controller.config.Statuses == nil || commit == "" {
		return
	}
	status := releaserecord.CommitStatus{
		Context:     controller.config.StatusContext + "/" + target.ID(),
		State:       state,
		Description: description,
	}
	if err := controller.config.Statuses.ReportStatus(ctx, commit, status); err != nil {
		controller.logger.Warn("commit status not reported", "target", target.ID(), "state", state, "error", err)
		rc.Warn("commit status for %s not reported: %v", target.ID(), err)
	}
}

func (controller *Controller) resolve(ctx context.Context, rc *RunContext) error {
	info, err := controller.config.Resolver.Resolve(rc.Trigger())
	if err != nil {
		return err
	}
	rc.SetInfo(info)
	controller.logger.Info("release resolved",
		"tag", info.Tag,
		"version", info.StampedVersion(),
		"kind", info.Kind.String(),
	)
	return nil
}

func (controller *Controller) deriveKeys(ctx context.Context, rc *RunContext) error {
	keys, warnings := controller.config.Deriver.Derive(ctx)
	rc.SetKeys(keys)
	for _, warning := range warnings {
		rc.Warn("%s", warning)
	}
	return nil
}

func (controller *Controller) prefetch(ctx context.Context, rc *RunContext) error {
	fetched, err := controller.config.Builder.Prefetch(ctx, build.Request{
		Target: controller.targets[0],
		Keys:   rc.Keys(),
	})
	if err != nil {
		rc.Warn("prefetching dependencies failed, targets fetch individually: %v", err)
		return err
	}
	controller.logger.Info("dependency cache ready", "fetched", fetched)
	return nil
}

func (controller *Controller) createRelease(ctx context.Context, rc *RunContext) error {
	info := rc.Info()
	project := controller.config.Packager.Project()
	record, err := controller.config.Records.Create(ctx, releaserecord.CreateRequest{
		Tag:     info.Tag,
		Name:    info.ReleaseName(project),
		Message: fmt.Sprintf("%s %s", project, info.Version),
		Commit:  rc.Trigger().Commit,
	})
	if err != nil {
		return err
	}
	rc.SetRecord(record)
	return nil
}

func (controller *Controller) rotateRelease(ctx context.Context, rc *RunContext) error {
	info := rc.Info()
	project := controller.config.Packager.Project()
	record, warning, err := controller.config.Records.Rotate(ctx, releaserecord.RotateRequest{
		Name:    info.ReleaseName(project),
		Message: fmt.Sprintf("Nightly build of %s %s", project, info.StampedVersion()),
		Commit:  rc.Trigger().Commit,
	})
	if warning != nil {
		rc.Warn("%v", warning)
	}
	if err != nil {
		return err
	}
	rc.SetRecord(record)
	return nil
}

func (controller *Controller) buildTarget(ctx context.Context, rc *RunContext, target matrix.Target) error {
	controller.reportStatus(ctx, rc, target, releaserecord.StatusPending, "building")
	result, err := controller.config.Builder.Build(ctx, build.Request{
		Target: target,
		Info:   rc.Info(),
		Keys:   rc.Keys(),
	})
	if err != nil {
		return err
	}
	rc.SetBuild(target, result)
	return nil
}

func (controller *Controller) packageTarget(ctx context.Context, rc *RunContext, target matrix.Target) error {
	artifact, err := controller.config.Packager.Package(ctx, packager.Request{
		Target:   target,
		Info:     rc.Info(),
		Binaries: rc.Build(target).Binaries,
	})
	if err != nil {
		return err
	}
	rc.SetArtifact(target, artifact)
	return nil
}

func (controller *Controller) uploadTarget(ctx context.Context, rc *RunContext, target matrix.Target) error {
	asset, err := controller.config.Publisher.Upload(ctx, rc.Record(), rc.Artifact(target))
	if err != nil {
		return err
	}
	rc.SetUpload(target, asset)
	controller.reportStatus(ctx, rc, target, releaserecord.StatusSuccess, "uploaded "+asset.Name)
	return nil
}

// publishRelease is the join barrier. The scheduler only starts it
// once every upload succeeded; the asset check here and the record
// manager's own check hold the line if that wiring ever changes.
func (controller *Controller) publishRelease(ctx context.Context, rc *RunContext) error {
	info := rc.Info()
	project := controller.config.Packager.Project()
	expected := make([]string, 0, len(controller.targets))
	var failures []TargetFailure
	for _, target := range controller.targets {
		expected = append(expected, packager.ArchiveName(project, info, target))
		if _, uploaded := rc.Upload(target); !uploaded {
			failures = append(failures, TargetFailure{
				Target: target.ID(),
				Stage:  StageUpload,
				Err:    errors.New("no asset uploaded"),
			})
		}
	}
	if len(failures) > 0 {
		return &BarrierError{Tag: info.Tag, Targets: len(controller.targets), Failures: failures}
	}
	_, err := controller.config.Records.Publish(ctx, rc.Record(), expected)
	return err
}

// summarize reduces a scheduler result to a Summary and the run error.
func (controller *Controller) summarize(flow releaseinfo.Kind, rc *RunContext, result *Result) (*Summary, error) {
	info := rc.Info()
	project := controller.config.Packager.Project()
	summary := &Summary{
		Flow:     flow,
		Tag:      info.Tag,
		Version:  info.StampedVersion(),
		DryRun:   controller.config.DryRun,
		Warnings: rc.Warnings(),
	}

	for _, node := range result.Nodes {
		status := StageStatus{
			Name:       node.Name,
			Stage:      node.Stage,
			State:      node.State,
			DurationMS: node.Duration.Milliseconds(),
			SkippedBy:  node.SkippedBy,
		}
		if node.Target != nil {
			status.Target = node.Target.ID()
		}
		if node.Err != nil {
			status.Error = node.Err.Error()
			status.ErrorKind = ErrorKind(node.Err)
		}
		summary.Stages = append(summary.Stages, status)
	}

	var failures []TargetFailure
	for _, target := range controller.targets {
		status := TargetStatus{Target: target.ID(), State: Pending}
		if info.Version != "" {
			status.Archive = packager.ArchiveName(project, info, target)
		}
		if built := rc.Build(target); built != nil {
			status.IndexHit = built.IndexHit
			status.ArtifactsHit = built.ArtifactsHit
		}
		for _, stage := range []string{StageBuild, StagePackage, StageUpload} {
			node, _ := result.Node(TargetNodeName(stage, target))
			status.State = node.State
			if node.State == Failed {
				status.Stage = stage
				status.Error = node.Err.Error()
				status.ErrorKind = ErrorKind(node.Err)
				failures = append(failures, TargetFailure{Target: target.ID(), Stage: stage, Err: node.Err})
			}
			if node.State != Succeeded {
				break
			}
		}
		status.Passed = status.State == Succeeded
		summary.Targets = append(summary.Targets, status)
	}

	if flow == releaseinfo.Versioned {
		node, _ := result.Node(StagePublish)
		summary.Published = node.State == Succeeded
	} else {
		node, _ := result.Node(StageRotate)
		summary.Published = node.State == Succeeded
	}

	var runErr error
	switch {
	case result.Aborted:
		summary.Outcome = OutcomeAborted
		runErr = result.Cause
	case len(failures) > 0 && flow == releaseinfo.Versioned:
		summary.Outcome = OutcomeFailure
		runErr = &BarrierError{Tag: info.Tag, Targets: len(controller.targets), Failures: failures}
	case len(failures) > 0:
		summary.Outcome = OutcomeFailure
		runErr = &TargetsError{Tag: info.Tag, Targets: len(controller.targets), Failures: failures}
	default:
		summary.Outcome = OutcomeSuccess
	}
	if runErr != nil {
		summary.Error = runErr.Error()
	}
	return summary, runErr
}
