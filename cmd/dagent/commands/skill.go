package commands

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dagent-ai/dagent/internal/config"
	"github.com/dagent-ai/dagent/internal/skill"
)

var (
	skillName    string
	skillDesc    string
	skillContent string
	skillFile    string
)

var skillCmd = &cobra.Command{
	Use:   "skill",
	Short: "Manage reusable skills injected into agent prompts",
}

var skillListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored skills",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openSkillStore()
		if err != nil {
			return err
		}
		defer store.Close()

		skills, err := store.List(cmd.Context())
		if err != nil {
			return err
		}
		if len(skills) == 0 {
			fmt.Println("no skills stored")
			return nil
		}
		for _, s := range skills {
			line := s.ID
			if s.Name != "" && s.Name != s.ID {
				line += " (" + s.Name + ")"
			}
			if s.Description != "" {
				line += " - " + s.Description
			}
			fmt.Println(line)
		}
		return nil
	},
}

var skillShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one skill",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openSkillStore()
		if err != nil {
			return err
		}
		defer store.Close()

		s, err := store.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if s == nil {
			return fmt.Errorf("skill %q not found", args[0])
		}
		fmt.Printf("id: %s\nname: %s\ndescription: %s\n\n%s\n", s.ID, s.Name, s.Description, s.Content)
		return nil
	},
}

var skillCreateCmd = &cobra.Command{
	Use:   "create <id>",
	Short: "Create a skill",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openSkillStore()
		if err != nil {
			return err
		}
		defer store.Close()

		content, err := resolveSkillContent()
		if err != nil {
			return err
		}
		s, err := store.Create(cmd.Context(), args[0], skillName, skillDesc, content)
		if err != nil {
			return err
		}
		fmt.Printf("created skill %s\n", s.ID)
		return nil
	},
}

var skillUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update a skill",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openSkillStore()
		if err != nil {
			return err
		}
		defer store.Close()

		var name, desc, content *string
		if cmd.Flags().Changed("name") {
			name = &skillName
		}
		if cmd.Flags().Changed("description") {
			desc = &skillDesc
		}
		if cmd.Flags().Changed("content") || cmd.Flags().Changed("file") {
			text, err := resolveSkillContent()
			if err != nil {
				return err
			}
			content = &text
		}

		s, err := store.Update(cmd.Context(), args[0], name, desc, content)
		if err != nil {
			return err
		}
		fmt.Printf("updated skill %s\n", s.ID)
		return nil
	},
}

var skillDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a skill",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openSkillStore()
		if err != nil {
			return err
		}
		defer store.Close()

		deleted, err := store.Delete(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if !deleted {
			return fmt.Errorf("skill %q not found", args[0])
		}
		fmt.Printf("deleted skill %s\n", args[0])
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{skillCreateCmd, skillUpdateCmd} {
		c.Flags().StringVar(&skillName, "name", "", "Skill name")
		c.Flags().StringVar(&skillDesc, "description", "", "Skill description")
		c.Flags().StringVar(&skillContent, "content", "", "Skill content")
		c.Flags().StringVar(&skillFile, "file", "", "Read skill content from file (\"-\" for stdin)")
	}

	skillCmd.AddCommand(skillListCmd)
	skillCmd.AddCommand(skillShowCmd)
	skillCmd.AddCommand(skillCreateCmd)
	skillCmd.AddCommand(skillUpdateCmd)
	skillCmd.AddCommand(skillDeleteCmd)
}

func openSkillStore() (*skill.Store, error) {
	paths := config.GetPaths()
	if err := paths.EnsurePaths(); err != nil {
		return nil, err
	}
	return skill.Open(paths.SkillsPath())
}

func resolveSkillContent() (string, error) {
	if skillFile == "" {
		return skillContent, nil
	}
	if skillFile == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(data)), nil
	}
	data, err := os.ReadFile(skillFile)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
