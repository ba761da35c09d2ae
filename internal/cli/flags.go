package cli

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"workspace-merge/internal/app"
)

// workspaceFlags are shared by every command that operates on a workspace.
type workspaceFlags struct {
	SettingsPath string
	IDEHome      string
	Workspace    string
}

func (f *workspaceFlags) register(flags *pflag.FlagSet) {
	flags.StringVar(&f.SettingsPath, "settings", "", "Settings directory containing setup/ and update/ (default <ide-home>/settings)")
	flags.StringVar(&f.IDEHome, "ide-home", "", "IDE home containing workspaces/")
	flags.StringVarP(&f.Workspace, "workspace", "w", "main", "Workspace name")
	_ = viper.BindPFlag("settings_path", flags.Lookup("settings"))
	_ = viper.BindPFlag("ide_home", flags.Lookup("ide-home"))
	_ = viper.BindPFlag("workspace", flags.Lookup("workspace"))
}

func (f workspaceFlags) request(cmd *cobra.Command) app.WorkspaceRequest {
	return app.WorkspaceRequest{
		SettingsPath: resolveString(cmd, f.SettingsPath, "settings_path", "settings"),
		IDEHome:      resolveString(cmd, f.IDEHome, "ide_home", "ide-home"),
		Workspace:    resolveString(cmd, f.Workspace, "workspace", "workspace"),
		Variables:    viper.GetStringMapString("variables"),
		JournalDB:    resolveString(cmd, "", "journal_db", ""),
	}
}

func resolveString(cmd *cobra.Command, value string, key string, flagName string) string {
	if cmd == nil {
		if value != "" {
			return value
		}
		return viper.GetString(key)
	}
	if flagChanged(cmd, flagName) {
		return value
	}
	return viper.GetString(key)
}

func resolveBool(cmd *cobra.Command, value bool, key string, flagName string) bool {
	if cmd == nil {
		return value
	}
	if flagChanged(cmd, flagName) {
		return value
	}
	return viper.GetBool(key)
}

func resolveInt(cmd *cobra.Command, value int, key string, flagName string) int {
	if cmd == nil {
		return value
	}
	if flagChanged(cmd, flagName) {
		return value
	}
	return viper.GetInt(key)
}

func flagChanged(cmd *cobra.Command, name string) bool {
	if cmd == nil || strings.TrimSpace(name) == "" {
		return false
	}
	if flag := cmd.Flags().Lookup(name); flag != nil {
		return flag.Changed
	}
	if flag := cmd.PersistentFlags().Lookup(name); flag != nil {
		return flag.Changed
	}
	return false
}
