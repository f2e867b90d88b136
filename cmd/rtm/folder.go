package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quayside/rtmirror/internal/mapper"
	"github.com/quayside/rtmirror/internal/models"
	"github.com/quayside/rtmirror/internal/store"
)

func newFolderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "folder",
		Short: "Manage the mirrored folder trees",
	}

	cmd.AddCommand(newFolderCreateCmd())
	cmd.AddCommand(newFolderListCmd())
	cmd.AddCommand(newFolderDeleteCmd())
	return cmd
}

func newFolderCreateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "create <kind> <path>",
		Short: "Create a local folder path",
		Long:  "Ensures the slash-separated path exists in the kind's tree, creating missing segments as local folders. Local folders live only in the mirror; the remote owns its own tree.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFolderCreate(cmd, configPath, args[0], args[1])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	return cmd
}

func runFolderCreate(cmd *cobra.Command, configPath, kindArg, path string) error {
	_, gormDB, project, err := openProject(configPath)
	if err != nil {
		return err
	}
	kind, ok := mapper.ParseKind(kindArg)
	if !ok {
		return fmt.Errorf("unknown kind %q", kindArg)
	}
	folder, err := store.EnsureFolderPath(gormDB, project.ID, kind, path)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Folder %s ready (%s)\n", path, folder.ID)
	return nil
}

func newFolderListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list <kind>",
		Short: "List a kind's folders",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFolderList(cmd, configPath, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	return cmd
}

func runFolderList(cmd *cobra.Command, configPath, kindArg string) error {
	_, gormDB, project, err := openProject(configPath)
	if err != nil {
		return err
	}
	kind, ok := mapper.ParseKind(kindArg)
	if !ok {
		return fmt.Errorf("unknown kind %q", kindArg)
	}
	out := cmd.OutOrStdout()

	var folders []models.Folder
	if err := gormDB.Where("project_id = ? AND kind = ? AND deleted = ?", project.ID, string(kind), false).
		Order("sort_order ASC, id ASC").Find(&folders).Error; err != nil {
		return fmt.Errorf("list folders: %w", err)
	}
	for _, f := range folders {
		path, err := store.FolderPath(gormDB, f.ID)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%-24s %s\n", f.ID, path)
	}
	fmt.Fprintf(out, "%d folders\n", len(folders))
	return nil
}

func newFolderDeleteCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an empty folder",
		Long:  "Removes a folder that holds no live subfolders or issues. Non-empty folders are refused; move or delete their contents first.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFolderDelete(cmd, configPath, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	return cmd
}

func runFolderDelete(cmd *cobra.Command, configPath, id string) error {
	_, gormDB, _, err := openProject(configPath)
	if err != nil {
		return err
	}
	if err := store.DeleteFolderIfEmpty(gormDB, id); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted folder %s\n", id)
	return nil
}
