package domain_test

import (
	"errors"
	"slices"
	"strings"
	"testing"

	"go.trai.ch/tend/internal/core/domain"
	"go.trai.ch/zerr"
)

func knownHandlers(names ...string) func(string) bool {
	return func(h string) bool { return slices.Contains(names, h) }
}

func TestTaskConfig_Add(t *testing.T) {
	cfg := domain.NewTaskConfig("/project")
	task := domain.NewAtomicTask("concat", "concat", nil)

	if err := cfg.Add(task); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := cfg.Add(task)
	if err == nil {
		t.Fatal("expected error when adding duplicate task, got nil")
	}
	zErr, ok := err.(*zerr.Error)
	if !ok {
		t.Fatalf("expected *zerr.Error, got %T", err)
	}
	if name, ok := zErr.Metadata()["task_name"].(string); !ok || name != "concat" {
		t.Errorf("expected metadata task_name=concat, got %v", zErr.Metadata()["task_name"])
	}

	if err := cfg.Add(domain.NewCompositeTask("  ")); err == nil {
		t.Error("expected error for blank task name, got nil")
	}
}

func TestTaskConfig_TasksKeepsDeclarationOrder(t *testing.T) {
	cfg := domain.NewTaskConfig("/project")
	for _, name := range []string{"zeta", "alpha", "mid"} {
		if err := cfg.Add(domain.NewAtomicTask(name, "exec", nil)); err != nil {
			t.Fatalf("failed to add %s: %v", name, err)
		}
	}

	var got []string
	for task := range cfg.Tasks() {
		got = append(got, task.Name)
	}
	want := []string{"zeta", "alpha", "mid"}
	if !slices.Equal(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	if cfg.Len() != 3 {
		t.Errorf("expected 3 tasks, got %d", cfg.Len())
	}
}

func TestTaskConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		tasks   []domain.TaskDefinition
		rules   []domain.WatchRule
		def     string
		wantErr []error
	}{
		{
			name: "valid",
			tasks: []domain.TaskDefinition{
				domain.NewAtomicTask("concat", "concat", nil),
				domain.NewAtomicTask("uglify", "minify", nil),
				domain.NewCompositeTask("build", "concat", "uglify"),
			},
			rules: []domain.WatchRule{{Name: "js", Patterns: []string{"src/*.js"}, Tasks: []string{"build"}}},
			def:   "build",
		},
		{
			name: "unresolved reference",
			tasks: []domain.TaskDefinition{
				domain.NewCompositeTask("build", "concat", "missing"),
				domain.NewAtomicTask("concat", "concat", nil),
			},
			wantErr: []error{domain.ErrUnresolvedReference},
		},
		{
			name:    "unknown handler",
			tasks:   []domain.TaskDefinition{domain.NewAtomicTask("sass", "sass", nil)},
			wantErr: []error{domain.ErrUnknownHandler},
		},
		{
			name:    "atomic task without handler",
			tasks:   []domain.TaskDefinition{domain.NewAtomicTask("empty", "", nil)},
			wantErr: []error{domain.ErrInvalidTaskDefinition},
		},
		{
			name: "self cycle",
			tasks: []domain.TaskDefinition{
				domain.NewCompositeTask("loop", "loop"),
			},
			wantErr: []error{domain.ErrCycleDetected},
		},
		{
			name:    "unresolved default",
			tasks:   []domain.TaskDefinition{domain.NewAtomicTask("concat", "concat", nil)},
			def:     "nope",
			wantErr: []error{domain.ErrUnresolvedReference},
		},
		{
			name:    "empty watch rule",
			tasks:   []domain.TaskDefinition{domain.NewAtomicTask("concat", "concat", nil)},
			rules:   []domain.WatchRule{{Name: "js", Tasks: []string{"concat"}}},
			wantErr: []error{domain.ErrEmptyWatchRule},
		},
		{
			name: "watch rule reaching watch handler",
			tasks: []domain.TaskDefinition{
				domain.NewAtomicTask("watch", domain.WatchHandlerName, nil),
				domain.NewCompositeTask("dev", "watch"),
			},
			rules:   []domain.WatchRule{{Name: "js", Patterns: []string{"*.js"}, Tasks: []string{"dev"}}},
			wantErr: []error{domain.ErrWatchTaskInRule},
		},
		{
			name: "problems are all reported",
			tasks: []domain.TaskDefinition{
				domain.NewCompositeTask("a", "b", "ghost"),
				domain.NewCompositeTask("b", "a"),
				domain.NewAtomicTask("c", "sass", nil),
			},
			rules: []domain.WatchRule{{Name: "js", Patterns: []string{"*.js"}, Tasks: []string{"phantom"}}},
			def:   "missing",
			wantErr: []error{
				domain.ErrUnresolvedReference,
				domain.ErrUnknownHandler,
				domain.ErrCycleDetected,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := domain.NewTaskConfig("/project")
			for _, task := range tt.tasks {
				if err := cfg.Add(task); err != nil {
					t.Fatalf("failed to add %s: %v", task.Name, err)
				}
			}
			for _, r := range tt.rules {
				if err := cfg.AddWatchRule(r); err != nil {
					t.Fatalf("failed to add rule %s: %v", r.Name, err)
				}
			}
			cfg.SetDefault(tt.def)

			problems := cfg.Validate(knownHandlers("concat", "minify", "exec", domain.WatchHandlerName))
			if len(tt.wantErr) == 0 {
				if len(problems) != 0 {
					t.Fatalf("expected no problems, got %v", problems)
				}
				return
			}
			joined := errors.Join(problems...)
			for _, want := range tt.wantErr {
				if !errors.Is(joined, want) {
					t.Errorf("expected problems to include %v, got %v", want, problems)
				}
			}
		})
	}
}

func TestTaskConfig_Validate_CyclePath(t *testing.T) {
	cfg := domain.NewTaskConfig("/project")
	_ = cfg.Add(domain.NewCompositeTask("A", "B"))
	_ = cfg.Add(domain.NewCompositeTask("B", "C"))
	_ = cfg.Add(domain.NewCompositeTask("C", "A"))

	problems := cfg.Validate(nil)
	if len(problems) != 1 {
		t.Fatalf("expected exactly one cycle, got %v", problems)
	}
	if !strings.Contains(problems[0].Error(), "A -> B -> C -> A") {
		t.Errorf("expected cycle path in %q", problems[0].Error())
	}
}

func TestTaskConfig_Leaves(t *testing.T) {
	cfg := domain.NewTaskConfig("/project")
	_ = cfg.Add(domain.NewAtomicTask("exec:build", "exec", nil))
	_ = cfg.Add(domain.NewAtomicTask("uglify:app", "minify", nil))
	_ = cfg.Add(domain.NewCompositeTask("uglify", "uglify:app"))
	_ = cfg.Add(domain.NewCompositeTask("build", "exec:build", "uglify", "ghost"))

	var got []string
	for _, leaf := range cfg.Leaves("build") {
		got = append(got, leaf.Name)
	}
	want := []string{"exec:build", "uglify:app"}
	if !slices.Equal(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestTaskExecutionError(t *testing.T) {
	cause := errors.New("boom")
	err := error(&domain.TaskExecutionError{Task: "concat", Err: cause})

	if !errors.Is(err, domain.ErrTaskExecutionFailed) {
		t.Error("expected ErrTaskExecutionFailed in chain")
	}
	if !errors.Is(err, cause) {
		t.Error("expected cause in chain")
	}
	if got := err.Error(); got != `task "concat" failed: boom` {
		t.Errorf("unexpected message %q", got)
	}
}

func TestConfigValidationError(t *testing.T) {
	err := error(&domain.ConfigValidationError{Problems: []error{
		domain.ErrUnknownHandler,
		domain.ErrCycleDetected,
	}})

	if !errors.Is(err, domain.ErrConfigValidation) {
		t.Error("expected ErrConfigValidation in chain")
	}
	if !errors.Is(err, domain.ErrCycleDetected) {
		t.Error("expected problem in chain")
	}
	if !strings.Contains(err.Error(), "2 problems") {
		t.Errorf("expected problem count in %q", err.Error())
	}
}

func TestParseEventMask(t *testing.T) {
	m, err := domain.ParseEventMask("added", "deleted")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !m.Has(domain.ChangeAdded) || !m.Has(domain.ChangeDeleted) || m.Has(domain.ChangeChanged) {
		t.Errorf("unexpected mask %b", m)
	}

	all, err := domain.ParseEventMask()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if all != domain.AllEvents {
		t.Errorf("expected all events, got %b", all)
	}

	if _, err := domain.ParseEventMask("renamed"); err == nil {
		t.Error("expected error for unknown event")
	}
}
