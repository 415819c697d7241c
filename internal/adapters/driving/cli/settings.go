package cli

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/addrcrawl/internal/core/domain"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage per-account crawl settings",
	Long: `View and change the settings that shape an account's crawls.

Known settings:
  contacts_attrs           comma separated contact fields to export (default firstName,lastName)
  contacts_include_shared  follow folders shared with the account (default false)`,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show [account-id]",
	Short: "Show an account's settings",
	Args:  cobra.ExactArgs(1),
	RunE:  runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set [account-id] [name] [value]",
	Short: "Change one setting",
	Args:  cobra.ExactArgs(3),
	RunE:  runSettingsSet,
}

var settingsImportCmd = &cobra.Command{
	Use:   "import [account-id] [property...]",
	Short: "Import settings stored as namespace:name:value properties",
	Long: `Imports user properties in their stored "<namespace>:<name>:<value>" form.
Properties of other namespaces are ignored.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runSettingsImport,
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsImportCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, args []string) error {
	if settingsStore == nil {
		return errors.New("settings store not configured")
	}

	settings, err := settingsStore.UserSettings(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Printf("Settings for %s\n", args[0])
	cmd.Println()
	cmd.Printf("  Include fields: %s\n", strings.Join(settings.IncludeFields(), ", "))
	cmd.Printf("  Include shared: %t\n", settings.IncludeShared())

	values := settings.Values()
	delete(values, domain.SettingIncludeFields)
	delete(values, domain.SettingIncludeShared)
	if len(values) == 0 {
		return nil
	}
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	cmd.Println()
	cmd.Println("  Other:")
	for _, name := range names {
		cmd.Printf("    %s = %s\n", name, values[name])
	}
	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	if settingsStore == nil {
		return errors.New("settings store not configured")
	}

	account, name, value := args[0], args[1], args[2]
	if err := checkSetting(name, value); err != nil {
		return err
	}
	if err := settingsStore.SaveUserSetting(cmd.Context(), account, name, value); err != nil {
		return fmt.Errorf("failed to save setting: %w", err)
	}
	cmd.Printf("Set %s for %s.\n", name, account)
	return nil
}

func runSettingsImport(cmd *cobra.Command, args []string) error {
	if settingsStore == nil {
		return errors.New("settings store not configured")
	}

	account := args[0]
	values := domain.ParseSettings(domain.SettingsNamespace, args[1:]).Values()
	if len(values) == 0 {
		return fmt.Errorf("no %s properties found", domain.SettingsNamespace)
	}

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := checkSetting(name, values[name]); err != nil {
			return err
		}
		if err := settingsStore.SaveUserSetting(cmd.Context(), account, name, values[name]); err != nil {
			return fmt.Errorf("failed to save setting %s: %w", name, err)
		}
	}
	cmd.Printf("Imported %d settings for %s.\n", len(names), account)
	return nil
}

// checkSetting validates the value of a known setting.
func checkSetting(name, value string) error {
	switch name {
	case domain.SettingIncludeShared:
		// Unparseable values fall back to the default, so both defaults differ.
		parsed := domain.NewSettings(map[string]string{name: value})
		if parsed.Bool(name, true) != parsed.Bool(name, false) {
			return fmt.Errorf("%s must be true or false, got %q", name, value)
		}
	case domain.SettingIncludeFields:
		if strings.Trim(value, ", ") == "" {
			return fmt.Errorf("%s needs at least one field", name)
		}
	}
	return nil
}
