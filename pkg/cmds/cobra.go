package cmds

import (
	"os"
	"strings"

	"github.com/go-go-golems/multichat/pkg/steps/ai/settings"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func loadSettings() (*settings.Settings, error) {
	return LoadSettings(viper.GetViper(), viper.GetString("settings"))
}

func NewChatCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with every configured provider, switching between them with tab",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings()
			if err != nil {
				return err
			}
			logEvents, _ := cmd.Flags().GetBool("log-events")
			return RunChat(cmd.Context(), s, ChatOptions{LogEvents: logEvents})
		},
	}
	cmd.Flags().Bool("log-events", false, "Log every streaming event at debug level")
	return cmd
}

func NewAskCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask [prompt...]",
		Short: "Send one prompt to the --provider provider and stream the answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings()
			if err != nil {
				return err
			}

			o := AskOptions{EventsOutput: cmd.ErrOrStderr()}
			o.PrintEvents, _ = cmd.Flags().GetBool("print-events")
			o.PrintMetadata, _ = cmd.Flags().GetBool("print-metadata")
			o.LogEvents, _ = cmd.Flags().GetBool("log-events")
			o.Stats, _ = cmd.Flags().GetBool("stats")
			o.Width, _ = cmd.Flags().GetInt("width")
			markdown, _ := cmd.Flags().GetBool("markdown")
			o.Markdown = markdown && isatty.IsTerminal(os.Stdout.Fd())

			return RunAsk(cmd.Context(), s, cmd.OutOrStdout(), strings.Join(args, " "), o)
		},
	}
	cmd.Flags().Bool("markdown", false, "Render the answer as markdown when writing to a terminal")
	cmd.Flags().Int("width", 100, "Wrap width for markdown rendering")
	cmd.Flags().Bool("print-events", false, "Dump streaming events as JSON to stderr")
	cmd.Flags().Bool("print-metadata", false, "Keep event metadata in --print-events output")
	cmd.Flags().Bool("log-events", false, "Log every streaming event at debug level")
	cmd.Flags().Bool("stats", false, "Print model, token usage and duration to stderr")
	return cmd
}

func NewImageCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "image [prompt...]",
		Short: "Generate one image and print its reference",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings()
			if err != nil {
				return err
			}
			printRecord, _ := cmd.Flags().GetBool("yaml")
			return RunImage(cmd.Context(), s, cmd.OutOrStdout(), strings.Join(args, " "), ImageOptions{PrintRecord: printRecord})
		},
	}
	cmd.Flags().Bool("yaml", false, "Print the full image record as YAML")
	return cmd
}

func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective settings as YAML, with secrets masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings()
			if err != nil {
				return err
			}
			return s.Masked().ToYAML(cmd.OutOrStdout())
		},
	})
	return cmd
}
