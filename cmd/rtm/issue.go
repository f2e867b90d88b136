package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quayside/rtmirror/internal/mapper"
	"github.com/quayside/rtmirror/internal/models"
	"github.com/quayside/rtmirror/internal/store"
)

func newIssueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Author and inspect mirrored issues",
	}

	cmd.AddCommand(newIssueCreateCmd())
	cmd.AddCommand(newIssueEditCmd())
	cmd.AddCommand(newIssueDeleteCmd())
	cmd.AddCommand(newIssueMoveCmd())
	cmd.AddCommand(newIssueShowCmd())
	cmd.AddCommand(newIssueListCmd())
	cmd.AddCommand(newIssueLinkCmd())
	return cmd
}

func newIssueCreateCmd() *cobra.Command {
	var (
		configPath  string
		description string
		folderPath  string
		priority    string
		labels      []string
	)

	cmd := &cobra.Command{
		Use:   "create <kind> <summary>",
		Short: "Create a local issue",
		Long:  "Creates an issue locally. It has no remote key yet; the next `rtm push` creates it on the remote and adopts the assigned key. Kind is one of REQUIREMENT, TEST_CASE, TEST_PLAN, TEST_EXECUTION, DEFECT.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIssueCreate(cmd, configPath, args[0], args[1], description, folderPath, priority, labels)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	cmd.Flags().StringVarP(&description, "description", "d", "", "issue description")
	cmd.Flags().StringVarP(&folderPath, "folder", "f", "", "slash-separated folder path, created if missing")
	cmd.Flags().StringVar(&priority, "priority", "", "priority name")
	cmd.Flags().StringSliceVar(&labels, "label", nil, "label (repeatable)")
	return cmd
}

func runIssueCreate(cmd *cobra.Command, configPath, kindArg, summary, description, folderPath, priority string, labels []string) error {
	_, gormDB, project, err := openProject(configPath)
	if err != nil {
		return err
	}
	kind, ok := mapper.ParseKind(kindArg)
	if !ok {
		return fmt.Errorf("unknown kind %q", kindArg)
	}

	var folderID *string
	if folderPath != "" {
		folder, err := store.EnsureFolderPath(gormDB, project.ID, kind, folderPath)
		if err != nil {
			return err
		}
		folderID = &folder.ID
	}

	f, err := mapper.New(kind)
	if err != nil {
		return err
	}
	f.Summary = summary
	f.Description = description
	f.Priority = priority
	f.Labels = labels

	iss, err := store.CreateLocalIssue(gormDB, project.ID, kind, folderID, f)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created local %s #%d %q (push to assign a remote key)\n", kind, iss.ID, iss.Summary)
	return nil
}

func newIssueEditCmd() *cobra.Command {
	var (
		configPath  string
		summary     string
		description string
		status      string
		priority    string
		assignee    string
	)

	cmd := &cobra.Command{
		Use:   "edit <key>",
		Short: "Edit an issue locally",
		Long:  "Applies field edits to the local record and marks it dirty. The next `rtm push` sends them to the remote.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIssueEdit(cmd, configPath, args[0], map[string]string{
				"summary":     summary,
				"description": description,
				"status":      status,
				"priority":    priority,
				"assignee":    assignee,
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	cmd.Flags().StringVar(&summary, "summary", "", "new summary")
	cmd.Flags().StringVarP(&description, "description", "d", "", "new description")
	cmd.Flags().StringVar(&status, "status", "", "new status name")
	cmd.Flags().StringVar(&priority, "priority", "", "new priority name")
	cmd.Flags().StringVar(&assignee, "assignee", "", "new assignee")
	return cmd
}

func runIssueEdit(cmd *cobra.Command, configPath, key string, edits map[string]string) error {
	edited := false
	for _, v := range edits {
		if v != "" {
			edited = true
		}
	}
	if !edited {
		return fmt.Errorf("nothing to edit; pass at least one field flag")
	}

	_, gormDB, project, err := openProject(configPath)
	if err != nil {
		return err
	}
	iss, err := store.FindIssue(gormDB, project.ID, key)
	if err != nil {
		return err
	}

	f, err := fieldsFromRow(iss)
	if err != nil {
		return err
	}
	for field, v := range edits {
		if v == "" {
			continue
		}
		switch field {
		case "summary":
			f.Summary = v
		case "description":
			f.Description = v
		case "status":
			f.Status = v
		case "priority":
			f.Priority = v
		case "assignee":
			f.Assignee = v
		}
	}

	if err := store.UpdateIssueFields(gormDB, iss.ID, f); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Edited %s (dirty, push to sync)\n", key)
	return nil
}

// fieldsFromRow rebuilds the editable field set from a mirrored row.
func fieldsFromRow(iss *models.Issue) (*mapper.Fields, error) {
	kind, ok := mapper.ParseKind(iss.Kind)
	if !ok {
		return nil, fmt.Errorf("issue has unknown kind %q", iss.Kind)
	}
	f, err := mapper.New(kind)
	if err != nil {
		return nil, err
	}
	f.Summary = iss.Summary
	f.Description = iss.Description
	f.Assignee = iss.Assignee
	f.Priority = iss.Priority
	f.Status = iss.Status
	f.Labels = splitCSV(iss.Labels)
	f.Components = splitCSV(iss.Components)
	f.Versions = splitCSV(iss.FixVersions)
	f.TimeEstimate = iss.TimeEstimate
	f.Environment = iss.Environment
	f.ParentKey = iss.ParentKey
	switch kind {
	case mapper.KindRequirement:
		f.Requirement.EpicName = iss.EpicName
	case mapper.KindTestCase:
		f.TestCase.Preconditions = iss.Preconditions
	}
	return f, nil
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func newIssueDeleteCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "delete <key>",
		Short: "Soft-delete an issue locally",
		Long:  "Marks the local record deleted. The row is kept as a tombstone; a later pull revives it if the remote still shows the issue.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIssueDelete(cmd, configPath, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	return cmd
}

func runIssueDelete(cmd *cobra.Command, configPath, key string) error {
	_, gormDB, project, err := openProject(configPath)
	if err != nil {
		return err
	}
	iss, err := store.FindIssue(gormDB, project.ID, key)
	if err != nil {
		return err
	}
	if err := store.SoftDeleteIssue(gormDB, iss.ID); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Tombstoned %s\n", key)
	return nil
}

func newIssueMoveCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "move <key> <folder-path>",
		Short: "Move an issue to another folder",
		Long:  "Places the issue under the given slash-separated folder path of its own kind, creating missing segments locally.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIssueMove(cmd, configPath, args[0], args[1])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	return cmd
}

func runIssueMove(cmd *cobra.Command, configPath, key, folderPath string) error {
	_, gormDB, project, err := openProject(configPath)
	if err != nil {
		return err
	}
	iss, err := store.FindIssue(gormDB, project.ID, key)
	if err != nil {
		return err
	}
	kind, ok := mapper.ParseKind(iss.Kind)
	if !ok {
		return fmt.Errorf("issue has unknown kind %q", iss.Kind)
	}
	folder, err := store.EnsureFolderPath(gormDB, project.ID, kind, folderPath)
	if err != nil {
		return err
	}
	if err := gormDB.Model(iss).Update("folder_id", folder.ID).Error; err != nil {
		return fmt.Errorf("move issue %s: %w", key, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Moved %s to %s\n", key, folderPath)
	return nil
}

func newIssueShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show <key>",
		Short: "Show an issue's mirrored detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIssueShow(cmd, configPath, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	return cmd
}

func runIssueShow(cmd *cobra.Command, configPath, key string) error {
	_, gormDB, project, err := openProject(configPath)
	if err != nil {
		return err
	}
	iss, err := store.FindIssue(gormDB, project.ID, key)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "%s [%s] %s\n", key, iss.Kind, iss.Summary)
	fmt.Fprintf(out, "  status: %s  priority: %s  assignee: %s\n", orDash(iss.Status), orDash(iss.Priority), orDash(iss.Assignee))
	if iss.FolderID != nil {
		if path, err := store.FolderPath(gormDB, *iss.FolderID); err == nil {
			fmt.Fprintf(out, "  folder: %s\n", path)
		}
	}
	if iss.Description != "" {
		fmt.Fprintf(out, "  %s\n", iss.Description)
	}
	switch iss.Kind {
	case string(mapper.KindTestCase):
		steps, err := store.StepsFor(gormDB, iss.ID)
		if err != nil {
			return err
		}
		for i, s := range steps {
			fmt.Fprintf(out, "  step %d: %s -> %s\n", i+1, s.Action, s.Expected)
		}
	case string(mapper.KindTestPlan):
		entries, err := store.PlanEntriesFor(gormDB, iss.ID)
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Fprintf(out, "  includes %s\n", e.TestKey)
		}
	case string(mapper.KindTestExecution):
		entries, err := store.ExecutionEntriesFor(gormDB, iss.ID)
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Fprintf(out, "  %s: %s\n", e.TestKey, orDash(e.Result))
		}
	}
	flags := []string{}
	if iss.Dirty {
		flags = append(flags, "dirty")
	}
	if iss.LocalOnly {
		flags = append(flags, "local-only")
	}
	if iss.Deleted {
		flags = append(flags, "deleted")
	}
	if len(flags) > 0 {
		fmt.Fprintf(out, "  flags: %s\n", strings.Join(flags, ", "))
	}
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func newIssueLinkCmd() *cobra.Command {
	var (
		configPath string
		linkType   string
	)

	cmd := &cobra.Command{
		Use:   "link <inward-key> <outward-key>",
		Short: "Link two issues on the remote",
		Long:  "Creates a directional link between two remote issues through the host's standard link endpoint. The link lands in the mirror on the next pull.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIssueLink(cmd, configPath, linkType, args[0], args[1])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	cmd.Flags().StringVarP(&linkType, "type", "t", "Relates", "link type name")
	return cmd
}

func runIssueLink(cmd *cobra.Command, configPath, linkType, inwardKey, outwardKey string) error {
	cfg, _, _, err := openProject(configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := remoteFromConfig(cfg).CreateIssueLink(ctx, linkType, inwardKey, outwardKey); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Linked %s -> %s (%s); pull to mirror it\n", inwardKey, outwardKey, linkType)
	return nil
}

func newIssueListCmd() *cobra.Command {
	var (
		configPath string
		kindArg    string
		dirtyOnly  bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List mirrored issues",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIssueList(cmd, configPath, kindArg, dirtyOnly)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	cmd.Flags().StringVarP(&kindArg, "kind", "k", "", "limit to one kind")
	cmd.Flags().BoolVar(&dirtyOnly, "dirty", false, "only records with unpushed edits")
	return cmd
}

func runIssueList(cmd *cobra.Command, configPath, kindArg string, dirtyOnly bool) error {
	_, gormDB, project, err := openProject(configPath)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	var issues []models.Issue
	switch {
	case dirtyOnly:
		issues, err = store.DirtyIssues(gormDB, project.ID)
	case kindArg != "":
		kind, ok := mapper.ParseKind(kindArg)
		if !ok {
			return fmt.Errorf("unknown kind %q", kindArg)
		}
		issues, err = store.IssuesByKind(gormDB, project.ID, kind)
	default:
		err = gormDB.Where("project_id = ? AND deleted = ?", project.ID, false).
			Order("kind ASC, id ASC").Find(&issues).Error
		if err != nil {
			err = fmt.Errorf("list issues: %w", err)
		}
	}
	if err != nil {
		return err
	}

	for _, iss := range issues {
		fmt.Fprintln(out, formatIssueLine(iss))
	}
	fmt.Fprintf(out, "%d issues\n", len(issues))
	return nil
}

func formatIssueLine(iss models.Issue) string {
	key := "(local)"
	if iss.RemoteKey != nil {
		key = *iss.RemoteKey
	}
	marks := ""
	if iss.Dirty {
		marks += " *"
	}
	if iss.Deleted {
		marks += " [deleted]"
	}
	return fmt.Sprintf("%-12s %-15s %s%s", key, iss.Kind, iss.Summary, marks)
}
