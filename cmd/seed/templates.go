package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"funnel_backend/internal/leads/domain"
	"funnel_backend/internal/messaging/repository"
	"funnel_backend/platform/config"
	"funnel_backend/platform/db"
	"funnel_backend/platform/logger"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type templateFile struct {
	Templates []templateSeed `yaml:"templates"`
}

type templateSeed struct {
	Name         string `yaml:"name"`
	TriggerState string `yaml:"trigger_state"`
	Subject      string `yaml:"subject"`
	Content      string `yaml:"content"`
	Inactive     bool   `yaml:"inactive"`
}

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "Upsert message templates by name from a YAML file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		path, _ := cmd.Flags().GetString("file")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		return runTemplates(cmd.Context(), cmd.OutOrStdout(), path, dryRun)
	},
}

func init() {
	templatesCmd.Flags().String("file", "seeds/templates.yaml", "YAML file with the templates to seed")
	templatesCmd.Flags().Bool("dry-run", false, "Validate the file without touching the database")
	rootCmd.AddCommand(templatesCmd)
}

func runTemplates(ctx context.Context, out io.Writer, path string, dryRun bool) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	seeds, err := loadTemplates(f)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if dryRun {
		for _, s := range seeds {
			fmt.Fprintf(out, "ok  %s (%s)\n", s.Name, triggerLabel(s.TriggerState))
		}
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(cfg.Env)

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	repo := repository.New(pool)
	for _, s := range seeds {
		tpl, inserted, err := repo.Upsert(ctx, s)
		if err != nil {
			return fmt.Errorf("upsert %q: %w", s.Name, err)
		}
		action := "updated"
		if inserted {
			action = "created"
		}
		log.Info("template seeded", "name", tpl.Name, "action", action)
	}
	return nil
}

// loadTemplates decodes and validates a template file. Trigger states are
// normalized to the catalog spelling.
func loadTemplates(r io.Reader) ([]repository.UpsertTemplateParams, error) {
	var file templateFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if len(file.Templates) == 0 {
		return nil, fmt.Errorf("no templates defined")
	}

	seen := make(map[string]struct{}, len(file.Templates))
	out := make([]repository.UpsertTemplateParams, 0, len(file.Templates))
	for i, t := range file.Templates {
		name := strings.TrimSpace(t.Name)
		if name == "" {
			return nil, fmt.Errorf("template %d: name is required", i+1)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("template %q is defined twice", name)
		}
		seen[name] = struct{}{}

		if strings.TrimSpace(t.Content) == "" {
			return nil, fmt.Errorf("template %q: content is required", name)
		}

		params := repository.UpsertTemplateParams{
			Name:     name,
			Subject:  strings.TrimSpace(t.Subject),
			Content:  strings.TrimSpace(t.Content),
			IsActive: !t.Inactive,
		}
		if raw := strings.TrimSpace(t.TriggerState); raw != "" {
			state, err := domain.ParseState(raw)
			if err != nil {
				return nil, fmt.Errorf("template %q: %w", name, err)
			}
			trigger := state.String()
			params.TriggerState = &trigger
		}
		out = append(out, params)
	}
	return out, nil
}

func triggerLabel(state *string) string {
	if state == nil {
		return "no trigger"
	}
	return *state
}
