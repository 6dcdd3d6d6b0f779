// Package config provides the tend.yaml configuration loader.
package config

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"go.trai.ch/tend/internal/core/domain"
	"go.trai.ch/tend/internal/core/ports"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// Loader implements ports.ConfigLoader using a YAML file.
type Loader struct {
	Logger ports.Logger
}

// NewLoader creates a new Loader with the given logger.
func NewLoader(logger ports.Logger) *Loader {
	return &Loader{Logger: logger}
}

// Load reads the task file at path. A directory is searched for tend.yaml
// (or tend.yml), walking up towards the filesystem root.
func (l *Loader) Load(path string) (*domain.TaskConfig, error) {
	configPath, err := l.findConfiguration(path)
	if err != nil {
		return nil, err
	}
	l.Logger.Debug("loading task file", "path", configPath)

	var taskfile Taskfile
	if err := readAndUnmarshalYAML(configPath, &taskfile); err != nil {
		return nil, zerr.With(err, "path", configPath)
	}

	return l.build(&taskfile, resolveRoot(configPath, taskfile.Root))
}

func (l *Loader) findConfiguration(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", zerr.With(domain.Classify(domain.ErrConfigNotFound, err), "path", path)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return "", domain.Annotate(domain.ErrConfigNotFound, "path", abs)
	}
	if !info.IsDir() {
		return abs, nil
	}

	currentDir := abs
	for {
		for _, name := range domain.ConfigFileNames() {
			candidate := filepath.Join(currentDir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			// Reached root
			break
		}
		currentDir = parentDir
	}

	return "", domain.Annotate(domain.ErrConfigNotFound, "cwd", abs)
}

// build turns the decoded file into a TaskConfig. Structural problems are
// collected and returned together as a *domain.ConfigValidationError.
func (l *Loader) build(taskfile *Taskfile, root string) (*domain.TaskConfig, error) {
	cfg := domain.NewTaskConfig(root)
	var problems []error

	add := func(t domain.TaskDefinition) {
		if err := cfg.Add(t); err != nil {
			problems = append(problems, fmt.Errorf("%w: %q", domain.ErrTaskAlreadyExists, t.Name))
		}
	}

	for _, name := range taskfile.Tasks.Keys {
		dto := taskfile.Tasks.Values[name]
		if err := validateTaskName(name); err != nil {
			problems = append(problems, fmt.Errorf("%w: %q (line %d)", domain.ErrInvalidTaskName, name, dto.Line))
			continue
		}
		tasks, err := expandTask(name, dto)
		if err != nil {
			problems = append(problems, err)
			continue
		}
		for _, t := range tasks {
			add(t)
		}
	}

	if taskfile.Default != nil {
		add(domain.NewCompositeTask(domain.DefaultTaskName, taskfile.Default...))
	}

	rules, ruleProblems := l.buildRules(&taskfile.Watch)
	problems = append(problems, ruleProblems...)
	for _, rule := range rules {
		if err := cfg.AddWatchRule(rule); err != nil {
			problems = append(problems, fmt.Errorf("%w: %q", domain.ErrWatchRuleExists, rule.Name))
		}
	}

	if len(rules) > 0 {
		add(domain.NewAtomicTask(domain.WatchTaskName, domain.WatchHandlerName, nil).
			WithDescription("Watch every rule and run its tasks on change"))
		for _, rule := range rules {
			opts := domain.Options{"rules": []string{rule.Name}}
			add(domain.NewAtomicTask(domain.TargetName(domain.WatchTaskName, rule.Name), domain.WatchHandlerName, opts).
				WithDescription("Watch " + strings.Join(rule.Patterns, ", ")))
		}
	}

	switch {
	case hasTask(cfg, domain.DefaultTaskName):
		cfg.SetDefault(domain.DefaultTaskName)
	case len(rules) > 0:
		cfg.SetDefault(domain.WatchTaskName)
	}

	if len(problems) > 0 {
		return nil, &domain.ConfigValidationError{Problems: problems}
	}
	return cfg, nil
}

func hasTask(cfg *domain.TaskConfig, name string) bool {
	_, ok := cfg.Task(name)
	return ok
}

// expandTask converts one "tasks" entry into task definitions. A task with
// targets yields one atomic task per target plus a composite running them all.
func expandTask(name string, dto TaskDTO) ([]domain.TaskDefinition, error) {
	switch {
	case dto.Run != nil:
		if dto.Handler != "" || dto.Targets.Len() > 0 {
			return nil, fmt.Errorf("%w: task %q declares run together with handler or targets (line %d)",
				domain.ErrInvalidTaskDefinition, name, dto.Line)
		}
		return []domain.TaskDefinition{
			domain.NewCompositeTask(name, dto.Run...).WithDescription(dto.Description),
		}, nil

	case dto.Handler == "":
		return nil, fmt.Errorf("%w: task %q needs a handler or a run list (line %d)",
			domain.ErrInvalidTaskDefinition, name, dto.Line)

	case dto.Targets.Len() == 0:
		opts := mergeOptions(dto.Options, dto.Data)
		return []domain.TaskDefinition{
			domain.NewAtomicTask(name, dto.Handler, opts).WithDescription(dto.Description),
		}, nil
	}

	if dto.Data != nil {
		keys := slices.Sorted(maps.Keys(dto.Data))
		return nil, fmt.Errorf("%w: task %q mixes targets with task data %v (line %d)",
			domain.ErrInvalidTaskDefinition, name, keys, dto.Line)
	}

	tasks := make([]domain.TaskDefinition, 0, dto.Targets.Len()+1)
	steps := make([]string, 0, dto.Targets.Len())
	for _, target := range dto.Targets.Keys {
		if err := validateTaskName(target); err != nil {
			return nil, fmt.Errorf("%w: target %q of task %q", domain.ErrInvalidTaskName, target, name)
		}
		tdto := dto.Targets.Values[target]
		full := domain.TargetName(name, target)
		opts := mergeOptions(dto.Options, tdto.Options, tdto.Data)
		tasks = append(tasks, domain.NewAtomicTask(full, dto.Handler, opts))
		steps = append(steps, full)
	}
	tasks = append(tasks, domain.NewCompositeTask(name, steps...).WithDescription(dto.Description))
	return tasks, nil
}

// mergeOptions shallow-merges layers left to right; later layers win.
func mergeOptions(layers ...map[string]any) domain.Options {
	out := make(domain.Options)
	for _, layer := range layers {
		maps.Copy(out, layer)
	}
	return out
}

func (l *Loader) buildRules(section *WatchSection) ([]domain.WatchRule, []error) {
	var (
		rules    []domain.WatchRule
		problems []error
	)
	for _, name := range section.Rules.Keys {
		dto := section.Rules.Values[name]
		if err := validateTaskName(name); err != nil {
			problems = append(problems, fmt.Errorf("%w: watch rule %q", domain.ErrInvalidTaskName, name))
			continue
		}

		for _, key := range slices.Sorted(maps.Keys(dto.Unknown)) {
			l.Logger.Warn("ignoring unknown watch rule key, settings belong under options", "rule", name, "key", key)
		}

		opts := dto.Options.merge(section.Defaults)
		for _, key := range slices.Sorted(maps.Keys(opts.Extra)) {
			l.Logger.Warn("ignoring unsupported watch option", "rule", name, "option", key)
		}

		events, err := domain.ParseEventMask(opts.Event...)
		if err != nil {
			problems = append(problems, fmt.Errorf("%w: watch rule %q: %v", domain.ErrInvalidWatchEvent, name, err))
			continue
		}

		rule := domain.WatchRule{
			Name:     name,
			Patterns: slices.Clone(dto.Files),
			Tasks:    slices.Clone(dto.Tasks),
			Events:   events,
		}
		if opts.DebounceDelay != nil {
			if *opts.DebounceDelay < 0 {
				problems = append(problems, fmt.Errorf("%w: watch rule %q has a negative debounceDelay",
					domain.ErrInvalidOptions, name))
				continue
			}
			rule.Debounce = time.Duration(*opts.DebounceDelay) * time.Millisecond
		}
		if opts.AtBegin != nil {
			rule.AtBegin = *opts.AtBegin
		}
		if opts.SkipUnchanged != nil {
			rule.SkipUnchanged = *opts.SkipUnchanged
		}
		rules = append(rules, rule)
	}
	return rules, problems
}

func resolveRoot(configPath, configuredRoot string) string {
	configDir := filepath.Dir(configPath)
	if configuredRoot == "" {
		return filepath.Clean(configDir)
	}
	if filepath.IsAbs(configuredRoot) {
		return filepath.Clean(configuredRoot)
	}
	return filepath.Clean(filepath.Join(configDir, configuredRoot))
}

// readAndUnmarshalYAML reads a YAML file and unmarshals it into the target struct.
func readAndUnmarshalYAML[T any](configPath string, target *T) error {
	// #nosec G304 -- configPath is validated by caller
	configFile, err := os.ReadFile(configPath)
	if err != nil {
		return domain.Classify(domain.ErrConfigReadFailed, err)
	}

	if parseErr := yaml.Unmarshal(configFile, target); parseErr != nil {
		return domain.Classify(domain.ErrConfigParseFailed, parseErr)
	}

	return nil
}

// validateTaskName rejects empty names and names containing the target separator.
func validateTaskName(name string) error {
	if strings.TrimSpace(name) == "" {
		return domain.ErrInvalidTaskName
	}
	if strings.Contains(name, domain.TargetSeparator) {
		err := domain.Annotate(domain.ErrInvalidTaskName, "invalid_character", domain.TargetSeparator)
		return zerr.With(err, "task_name", name)
	}
	return nil
}
